// Package config provides configuration loading and validation.
package config

// Config holds the server configuration.
type Config struct {
	// Mode is one of: prod, dev.
	Mode string `toml:"mode"`

	// ListenAddr is the address to listen on. Example: ":8080"
	ListenAddr string `toml:"listen_addr"`

	// TrustedProxies are CIDRs whose X-Forwarded-For headers are honored
	// when resolving the client IP for rate limiting.
	TrustedProxies []string `toml:"trusted_proxies"`

	Store        StoreConfig        `toml:"store"`
	OutboundHTTP OutboundHTTPConfig `toml:"outbound_http"`
	Places       PlacesConfig       `toml:"places"`
	Notify       NotifyConfig       `toml:"notify"`
	Auth         AuthConfig         `toml:"auth"`
}

// StoreConfig selects and configures the plan store driver.
type StoreConfig struct {
	// Driver is one of: memory, sqlite.
	Driver string `toml:"driver"`

	// DataDir is where the sqlite driver keeps its database file.
	DataDir string `toml:"data_dir"`
}

// OutboundHTTPConfig bounds outbound requests to third-party services.
type OutboundHTTPConfig struct {
	TimeoutMS        int   `toml:"timeout_ms"`
	ConnectTimeoutMS int   `toml:"connect_timeout_ms"`
	MaxRedirects     int   `toml:"max_redirects"`
	MaxResponseBytes int64 `toml:"max_response_bytes"`
}

// PlacesConfig configures the restaurant search upstream.
type PlacesConfig struct {
	// OverpassURL overrides the Overpass interpreter endpoint. Empty means
	// the public instance.
	OverpassURL string `toml:"overpass_url"`
}

// NotifyConfig configures push notification delivery.
type NotifyConfig struct {
	// Enabled turns push delivery on. Off means events are dropped, which
	// is the right default for dev and tests.
	Enabled bool `toml:"enabled"`

	// PushURL overrides the Expo push gateway. Empty means the public
	// gateway.
	PushURL string `toml:"push_url"`
}

// AuthConfig configures sessions and password hashing.
type AuthConfig struct {
	// SessionTTLHours is how long a login session stays valid.
	SessionTTLHours int `toml:"session_ttl_hours"`

	// BcryptCost is the password hashing cost factor.
	BcryptCost int `toml:"bcrypt_cost"`
}
