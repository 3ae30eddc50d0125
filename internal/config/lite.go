// Package config provides configuration management for the signal server.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/faers-signal-server/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation backed by
// an embedded SQLite report store. It requires no Postgres or Redis.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the SQLite store and exports

	// Cache settings
	PairCacheSize int           // Maximum single-pair lookups kept in memory
	CacheTTL      time.Duration // Default cache TTL

	// HTTP settings
	HTTPHost string
	HTTPPort int

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text

	// Analysis parameters
	Analysis domain.AnalysisConfig
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".faers-signal")

	return &LiteConfig{
		DataDir:       dataDir,
		PairCacheSize: 1024,
		CacheTTL:      24 * time.Hour,
		HTTPHost:      "0.0.0.0",
		HTTPPort:      8080,
		LogLevel:      "info",
		LogFormat:     "json",
		Analysis:      domain.DefaultAnalysisConfig(),
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("FAERS_SIGNAL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("FAERS_SIGNAL_PAIR_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PairCacheSize = n
		}
	}
	if v := os.Getenv("FAERS_SIGNAL_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("FAERS_SIGNAL_HTTP_HOST"); v != "" {
		cfg.HTTPHost = v
	}
	if v := os.Getenv("FAERS_SIGNAL_HTTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	if v := os.Getenv("FAERS_SIGNAL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FAERS_SIGNAL_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	if v := os.Getenv("FAERS_SIGNAL_MINIMUM_CASES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			cfg.Analysis.MinimumCases = n
		}
	}
	if v := os.Getenv("FAERS_SIGNAL_CONFIDENCE_LEVEL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.ConfidenceLevel = f
		}
	}

	return cfg
}

// StoreDBPath returns the path to the SQLite report store.
func (c *LiteConfig) StoreDBPath() string {
	return filepath.Join(c.DataDir, "reports.db")
}

// ExportDir returns the directory for CSV exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}
