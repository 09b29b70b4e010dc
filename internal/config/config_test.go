package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lounge.yaml")
	content := "storage:\n  path: " + filepath.Join(dir, "data", "lounge.bolt") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("expected HTTP port 8080, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Billing.DefaultRateOneTwo != 7000 || cfg.Billing.DefaultRateThreeFour != 10000 {
		t.Errorf("unexpected default rates: %+v", cfg.Billing)
	}
	if cfg.Access.MaxAttempts != 3 || cfg.Access.UnlockTTL != "8h" {
		t.Errorf("unexpected access defaults: %+v", cfg.Access)
	}
	if cfg.Reporting.MaxDocumentRows != 15 {
		t.Errorf("expected 15 document rows, got %d", cfg.Reporting.MaxDocumentRows)
	}
	if _, err := os.Stat(filepath.Join(dir, "data")); err != nil {
		t.Errorf("expected storage directory to be created: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lounge.yaml")
	content := "storage:\n  path: " + filepath.Join(dir, "lounge.bolt") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LOUNGE_SERVER_HTTP_PORT", "9999")
	t.Setenv("LOUNGE_BILLING_TIMEZONE", "UTC")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Server.HTTPPort != 9999 {
		t.Errorf("expected env override 9999, got %d", cfg.Server.HTTPPort)
	}
	loc, err := cfg.Billing.Location()
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if loc != time.UTC {
		t.Errorf("expected UTC, got %s", loc)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:    ServerConfig{HTTPPort: 8080, MetricsPort: 9090},
			Storage:   StorageConfig{Type: "bolt", Path: filepath.Join(t.TempDir(), "x.bolt")},
			Billing:   BillingConfig{DefaultRateOneTwo: 7000, DefaultRateThreeFour: 10000},
			Access:    AccessConfig{UnlockTTL: "8h", Lockout: "30s", MaxAttempts: 3},
			Reporting: ReportingConfig{MaxDocumentRows: 15, CacheSize: 10, RolloverTime: "00:00"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Server.HTTPPort = 0 }, true},
		{"unknown storage", func(c *Config) { c.Storage.Type = "sqlite" }, true},
		{"redis without host", func(c *Config) { c.Storage.Type = "redis" }, true},
		{"negative rate", func(c *Config) { c.Billing.DefaultRateOneTwo = -1 }, true},
		{"bad ttl", func(c *Config) { c.Access.UnlockTTL = "soon" }, true},
		{"bad timezone", func(c *Config) { c.Billing.Timezone = "Mars/Olympus" }, true},
		{"zero rows", func(c *Config) { c.Reporting.MaxDocumentRows = 0 }, true},
		{"bad rollover time", func(c *Config) { c.Reporting.RolloverTime = "25:99" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := validate(&cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lounge.yaml")
	content := "server:\n  http_port: 8081\n  htp_port: 1\nbilling:\n  timezone: UTC\nextra: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	unknown, err := UnknownKeys(path)
	if err != nil {
		t.Fatalf("unknown keys: %v", err)
	}
	if len(unknown) != 2 || unknown[0] != "extra" || unknown[1] != "server.htp_port" {
		t.Errorf("unexpected unknown keys: %v", unknown)
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Storage.Type != "bolt" || cfg.Reporting.RolloverTime != "00:00" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
