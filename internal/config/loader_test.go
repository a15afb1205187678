package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != "prod" {
		t.Errorf("mode = %q, want prod", cfg.Mode)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Store.Driver)
	}
	if !cfg.Notify.Enabled {
		t.Error("notify should default on in prod")
	}
}

func TestLoadDevPreset(t *testing.T) {
	cfg, err := Load(LoaderOptions{ModeFlag: "dev"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("driver = %q, want memory in dev", cfg.Store.Driver)
	}
	if cfg.Notify.Enabled {
		t.Error("notify should default off in dev")
	}
}

func TestLoadFileOverlay(t *testing.T) {
	path := writeConfig(t, `
listen_addr = ":9090"

[store]
driver = "sqlite"
data_dir = "/var/lib/tablemate"

[auth]
session_ttl_hours = 24
`)

	cfg, err := Load(LoaderOptions{ConfigPath: path})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q", cfg.ListenAddr)
	}
	if cfg.Store.DataDir != "/var/lib/tablemate" {
		t.Errorf("data_dir = %q", cfg.Store.DataDir)
	}
	if cfg.Auth.SessionTTLHours != 24 {
		t.Errorf("session_ttl_hours = %d", cfg.Auth.SessionTTLHours)
	}
	// Untouched sections keep preset values.
	if cfg.Auth.BcryptCost != 12 {
		t.Errorf("bcrypt_cost = %d, want preset 12", cfg.Auth.BcryptCost)
	}
}

func TestLoadModePrecedence(t *testing.T) {
	path := writeConfig(t, `mode = "prod"`)

	cfg, err := Load(LoaderOptions{ConfigPath: path, ModeFlag: "dev"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != "dev" {
		t.Errorf("mode = %q, flag should beat file", cfg.Mode)
	}
}

func TestLoadFlagOverrides(t *testing.T) {
	addr := ":7070"
	driver := "memory"
	cfg, err := Load(LoaderOptions{
		FlagOverrides: FlagOverrides{ListenAddr: &addr, StoreDriver: &driver},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":7070" || cfg.Store.Driver != "memory" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadEnvOverlay(t *testing.T) {
	t.Setenv("TABLEMATE_LISTEN_ADDR", ":6060")
	t.Setenv("TABLEMATE_STORE_DRIVER", "memory")

	cfg, err := Load(LoaderOptions{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":6060" || cfg.Store.Driver != "memory" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(LoaderOptions{ConfigPath: "/no/such/config.toml"})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name, content, wantErr string
	}{
		{"bad mode", `mode = "staging"`, "invalid mode"},
		{"bad driver", "[store]\ndriver = \"postgres\"", "invalid store.driver"},
		{"bad bcrypt cost", "[auth]\nbcrypt_cost = 50", "bcrypt_cost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(LoaderOptions{ConfigPath: path})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
