// Package main is the entrypoint for the tablemate server.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tablemate/tablemate-server/internal/config"
	"github.com/tablemate/tablemate-server/internal/httpclient"
	"github.com/tablemate/tablemate-server/internal/identity"
	"github.com/tablemate/tablemate-server/internal/notify"
	"github.com/tablemate/tablemate-server/internal/places"
	"github.com/tablemate/tablemate-server/internal/server"
	"github.com/tablemate/tablemate-server/internal/store"

	// Register store drivers
	_ "github.com/tablemate/tablemate-server/internal/store/memory"
	_ "github.com/tablemate/tablemate-server/internal/store/sqlite"
)

func main() {
	// Load .env if present; real environment variables win.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: prod or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: memory or sqlite (overrides config)")
	dataDir := flag.String("data-dir", "", "Data directory for the sqlite driver (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:  listenAddr,
			StoreDriver: storeDriver,
			DataDir:     dataDir,
		},
		Logger: logger,
	})
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Open the plan store through the driver registry
	driver, err := store.New(&store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
	})
	if err != nil {
		logger.Error("failed to create store driver", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	if err := driver.Init(context.Background()); err != nil {
		logger.Error("failed to initialize store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer driver.Close()

	planStore, ok := driver.(store.PlanStore)
	if !ok {
		logger.Error("store driver does not implement plan storage", "driver", cfg.Store.Driver)
		os.Exit(1)
	}

	// Outbound HTTP client shared by restaurant search and push delivery
	client := httpclient.New(httpclient.Options{
		Timeout:          time.Duration(cfg.OutboundHTTP.TimeoutMS) * time.Millisecond,
		ConnectTimeout:   time.Duration(cfg.OutboundHTTP.ConnectTimeoutMS) * time.Millisecond,
		MaxRedirects:     cfg.OutboundHTTP.MaxRedirects,
		MaxResponseBytes: cfg.OutboundHTTP.MaxResponseBytes,
	})

	partyRepo := identity.NewMemoryPartyRepo()

	deps := &server.Deps{
		PlanStore: planStore,
		PartyRepo: partyRepo,
		Places:    places.NewCachedProvider(places.NewOverpassProvider(client, cfg.Places.OverpassURL), places.DefaultCacheTTL),
	}

	// Push delivery is optional; the server falls back to a no-op notifier.
	var dispatcher *notify.Dispatcher
	if cfg.Notify.Enabled {
		dispatcher = notify.NewDispatcher(client, partyRepo, logger, cfg.Notify.PushURL)
		deps.Notifier = dispatcher
	}

	srv, err := server.New(cfg, logger, deps)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("server started, press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	// Let in-flight push deliveries drain before exiting.
	if dispatcher != nil {
		dispatcher.Flush()
	}

	logger.Info("server stopped")
}
