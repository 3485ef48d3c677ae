// Package config loads service configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tailscale/hujson"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultConfigFile is where Load looks when no path is given.
const DefaultConfigFile = "watchdeck.json"

var (
	errUnknownDriver = errors.New("database.driver must be \"sqlite\" or \"postgres\"")
	errMissingDSN    = errors.New("database.dsn is required for the postgres driver")
	errMissingPath   = errors.New("database.path is required for the sqlite driver")
	errBadRetention  = errors.New("retention_days must be positive")
	errMissingAddr   = errors.New("addr cannot be empty")
)

// Database selects and parameterizes the storage backend.
type Database struct {
	Driver string `json:"driver"`
	Path   string `json:"path"` // sqlite file
	DSN    string `json:"dsn"`  // postgres connection string
}

// Config holds all configuration options.
type Config struct {
	Addr          string   `json:"addr"`
	Database      Database `json:"database"`
	RetentionDays int      `json:"retention_days"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Addr: ":8787",
		Database: Database{
			Driver: DriverSQLite,
			Path:   "watchdeck.db",
		},
		RetentionDays: 90,
	}
}

// Load reads the config file at path, layered over defaults. A
// missing file is not an error: defaults apply. The file may carry
// comments and trailing commas (JSONC).
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Addr == "" {
		return errMissingAddr
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errMissingPath
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errMissingDSN
		}
	default:
		return errUnknownDriver
	}
	if c.RetentionDays <= 0 {
		return errBadRetention
	}
	return nil
}
