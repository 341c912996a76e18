// Package config loads engine configuration from YAML and wires the
// selected storage backend.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xraph/loyalty/store"
	"github.com/xraph/loyalty/store/memory"
	"github.com/xraph/loyalty/store/postgres"
	"github.com/xraph/loyalty/store/sqlite"
)

// Backend names accepted in configuration.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds engine settings.
type Config struct {
	// Backend selects the storage backend: memory, postgres or sqlite.
	Backend string `yaml:"backend"`

	// DSN is the connection string for postgres, or the database file
	// path for sqlite. Ignored by the memory backend.
	DSN string `yaml:"dsn"`

	// HistoryLimit caps transaction and redemption history reads.
	HistoryLimit int `yaml:"history_limit"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Migrate runs schema migrations on startup.
	Migrate bool `yaml:"migrate"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Backend:      BackendMemory,
		HistoryLimit: 100,
		LogLevel:     "info",
		Migrate:      true,
	}
}

// Load reads a YAML configuration file, layering it over Default.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendPostgres, BackendSQLite:
		if c.DSN == "" {
			return fmt.Errorf("config: backend %q requires a dsn", c.Backend)
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}

	if c.HistoryLimit < 0 {
		return fmt.Errorf("config: history_limit must not be negative")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}
	return nil
}

// SlogLevel translates the configured level for log/slog.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenStore constructs the configured storage backend.
func (c Config) OpenStore() (store.Store, error) {
	switch c.Backend {
	case BackendMemory:
		return memory.New(), nil
	case BackendPostgres:
		return postgres.Open(c.DSN)
	case BackendSQLite:
		return sqlite.Open(c.DSN)
	default:
		return nil, fmt.Errorf("config: unknown backend %q", c.Backend)
	}
}
