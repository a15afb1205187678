// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tablemate/tablemate-server/internal/api"
	"github.com/tablemate/tablemate-server/internal/config"
	"github.com/tablemate/tablemate-server/internal/identity"
	"github.com/tablemate/tablemate-server/internal/notify"
	"github.com/tablemate/tablemate-server/internal/places"
	"github.com/tablemate/tablemate-server/internal/plans"
	"github.com/tablemate/tablemate-server/internal/store"
)

var ErrMissingDep = errors.New("missing required dependency")

// Deps holds all server dependencies.
type Deps struct {
	// Required: plan storage
	PlanStore store.PlanStore

	// Optional: identity and auth (nil uses in-memory repos and defaults)
	PartyRepo   identity.PartyRepo
	SessionRepo identity.SessionRepo
	UserAuth    *identity.UserAuth

	// Optional: push notification sink (nil disables notifications)
	Notifier notify.Notifier

	// Optional: restaurant search provider (nil disables /api/restaurants)
	Places places.Provider
}

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg            *config.Config
	httpServer     *http.Server
	logger         *slog.Logger
	deps           *Deps
	trustedProxies *TrustedProxies
	authHandler    *api.AuthHandler
	plansHandler   *plans.Handler
	placesHandler  *places.Handler
}

// New creates a new Server with the given configuration.
// Returns an error if required dependencies are missing.
func New(cfg *config.Config, logger *slog.Logger, deps *Deps) (*Server, error) {
	// Fail fast: validate required dependencies
	if err := validateDeps(deps); err != nil {
		return nil, err
	}

	// Initialize in-memory defaults for optional dependencies
	initializeDefaultRepos(cfg, deps)

	authHandler := api.NewAuthHandler(
		deps.PartyRepo,
		deps.SessionRepo,
		deps.UserAuth,
		time.Duration(cfg.Auth.SessionTTLHours)*time.Hour,
	)

	plansHandler := plans.NewHandler(deps.PlanStore, deps.PartyRepo, deps.Notifier)

	var placesHandler *places.Handler
	if deps.Places != nil {
		placesHandler = places.NewHandler(deps.Places)
	}

	s := &Server{
		cfg:            cfg,
		logger:         logger,
		deps:           deps,
		trustedProxies: NewTrustedProxies(cfg.TrustedProxies),
		authHandler:    authHandler,
		plansHandler:   plansHandler,
		placesHandler:  placesHandler,
	}

	router := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server. It blocks until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		"addr", s.cfg.ListenAddr,
		"mode", s.cfg.Mode,
		"store_driver", s.cfg.Store.Driver,
	)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// validateDeps checks that all required dependencies are provided.
func validateDeps(deps *Deps) error {
	if deps == nil {
		return errors.New("deps is nil")
	}
	if deps.PlanStore == nil {
		return fmt.Errorf("%w: PlanStore", ErrMissingDep)
	}
	return nil
}

// initializeDefaultRepos fills nil optional dependencies with in-memory
// implementations so handlers always have valid repos to work with.
func initializeDefaultRepos(cfg *config.Config, deps *Deps) {
	if deps.PartyRepo == nil {
		deps.PartyRepo = identity.NewMemoryPartyRepo()
	}
	if deps.SessionRepo == nil {
		deps.SessionRepo = identity.NewMemorySessionRepo()
	}
	if deps.UserAuth == nil {
		deps.UserAuth = identity.NewUserAuth(cfg.Auth.BcryptCost)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
}
