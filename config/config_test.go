package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loyalty.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Backend != BackendMemory {
		t.Fatalf("default backend = %q", cfg.Backend)
	}
	if cfg.HistoryLimit != 100 {
		t.Fatalf("default history limit = %d", cfg.HistoryLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
backend: sqlite
dsn: /tmp/loyalty.db
history_limit: 50
log_level: debug
migrate: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendSQLite {
		t.Fatalf("backend = %q", cfg.Backend)
	}
	if cfg.DSN != "/tmp/loyalty.db" {
		t.Fatalf("dsn = %q", cfg.DSN)
	}
	if cfg.HistoryLimit != 50 {
		t.Fatalf("history_limit = %d", cfg.HistoryLimit)
	}
	if cfg.Migrate {
		t.Fatal("migrate should be false")
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("slog level = %v", cfg.SlogLevel())
	}
}

func TestLoadKeepsDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, `backend: memory`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HistoryLimit != 100 {
		t.Fatalf("history_limit = %d, want default 100", cfg.HistoryLimit)
	}
	if !cfg.Migrate {
		t.Fatal("migrate should default to true")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Backend = BackendPostgres }, wantErr: true},
		{name: "postgres with dsn", mutate: func(c *Config) {
			c.Backend = BackendPostgres
			c.DSN = "postgres://localhost/loyalty"
		}},
		{name: "unknown backend", mutate: func(c *Config) { c.Backend = "redis" }, wantErr: true},
		{name: "negative history limit", mutate: func(c *Config) { c.HistoryLimit = -1 }, wantErr: true},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
