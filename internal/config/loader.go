package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeProd Mode = "prod"
	ModeDev  Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "":
		return ModeProd, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of prod, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but the file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
// Nil means the flag was not set.
type FlagOverrides struct {
	ListenAddr  *string
	StoreDriver *string
	DataDir     *string
}

// fileConfig mirrors Config with pointer sections to detect presence.
type fileConfig struct {
	Mode           string   `toml:"mode"`
	ListenAddr     string   `toml:"listen_addr"`
	TrustedProxies []string `toml:"trusted_proxies"`

	Store        *StoreConfig        `toml:"store"`
	OutboundHTTP *OutboundHTTPConfig `toml:"outbound_http"`
	Places       *PlacesConfig       `toml:"places"`
	Notify       *NotifyConfig       `toml:"notify"`
	Auth         *AuthConfig         `toml:"auth"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > mode in config file > default (prod)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay environment variables
//  5. Overlay CLI flags
//  6. Validate
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid
// TOML, Load returns an error. Unknown TOML keys produce a warning but do
// not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig
	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	modeStr := fc.Mode
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}
	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	cfg := presetForMode(mode)

	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}
	overlayEnv(cfg)
	overlayFlags(cfg, opts.FlagOverrides)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return ProdConfig()
}

// ProdConfig returns production defaults: durable storage, push delivery on.
func ProdConfig() *Config {
	return &Config{
		Mode:           string(ModeProd),
		ListenAddr:     ":8080",
		TrustedProxies: []string{"127.0.0.0/8", "::1/128"},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: "data",
		},
		OutboundHTTP: OutboundHTTPConfig{
			TimeoutMS:        15000,
			ConnectTimeoutMS: 3000,
			MaxRedirects:     2,
			MaxResponseBytes: 4 << 20,
		},
		Notify: NotifyConfig{
			Enabled: true,
		},
		Auth: AuthConfig{
			SessionTTLHours: 720,
			BcryptCost:      12,
		},
	}
}

// DevConfig returns development defaults: everything in memory, no push.
func DevConfig() *Config {
	cfg := ProdConfig()
	cfg.Mode = string(ModeDev)
	cfg.Store.Driver = "memory"
	cfg.Notify.Enabled = false
	cfg.Auth.BcryptCost = 6
	return cfg
}

func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.TrustedProxies != nil {
		cfg.TrustedProxies = fc.TrustedProxies
	}
	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
	}
	if fc.OutboundHTTP != nil {
		if fc.OutboundHTTP.TimeoutMS > 0 {
			cfg.OutboundHTTP.TimeoutMS = fc.OutboundHTTP.TimeoutMS
		}
		if fc.OutboundHTTP.ConnectTimeoutMS > 0 {
			cfg.OutboundHTTP.ConnectTimeoutMS = fc.OutboundHTTP.ConnectTimeoutMS
		}
		if fc.OutboundHTTP.MaxRedirects > 0 {
			cfg.OutboundHTTP.MaxRedirects = fc.OutboundHTTP.MaxRedirects
		}
		if fc.OutboundHTTP.MaxResponseBytes > 0 {
			cfg.OutboundHTTP.MaxResponseBytes = fc.OutboundHTTP.MaxResponseBytes
		}
	}
	if fc.Places != nil {
		if fc.Places.OverpassURL != "" {
			cfg.Places.OverpassURL = fc.Places.OverpassURL
		}
	}
	if fc.Notify != nil {
		cfg.Notify.Enabled = fc.Notify.Enabled
		if fc.Notify.PushURL != "" {
			cfg.Notify.PushURL = fc.Notify.PushURL
		}
	}
	if fc.Auth != nil {
		if fc.Auth.SessionTTLHours > 0 {
			cfg.Auth.SessionTTLHours = fc.Auth.SessionTTLHours
		}
		if fc.Auth.BcryptCost > 0 {
			cfg.Auth.BcryptCost = fc.Auth.BcryptCost
		}
	}
}

// overlayEnv applies TABLEMATE_* environment variables, typically loaded
// from a .env file.
func overlayEnv(cfg *Config) {
	if v := os.Getenv("TABLEMATE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("TABLEMATE_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("TABLEMATE_DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
	}
	if v := os.Getenv("TABLEMATE_OVERPASS_URL"); v != "" {
		cfg.Places.OverpassURL = v
	}
	if v := os.Getenv("TABLEMATE_PUSH_URL"); v != "" {
		cfg.Notify.PushURL = v
	}
}

func overlayFlags(cfg *Config, flags FlagOverrides) {
	if flags.ListenAddr != nil && *flags.ListenAddr != "" {
		cfg.ListenAddr = *flags.ListenAddr
	}
	if flags.StoreDriver != nil && *flags.StoreDriver != "" {
		cfg.Store.Driver = *flags.StoreDriver
	}
	if flags.DataDir != nil && *flags.DataDir != "" {
		cfg.Store.DataDir = *flags.DataDir
	}
}

func validate(cfg *Config) error {
	if _, err := ParseMode(cfg.Mode); err != nil {
		return err
	}
	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	switch cfg.Store.Driver {
	case "memory":
	case "sqlite":
		if cfg.Store.DataDir == "" {
			return fmt.Errorf("store.data_dir is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of memory, sqlite", cfg.Store.Driver)
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost %d out of range [4, 31]", cfg.Auth.BcryptCost)
	}
	return nil
}
