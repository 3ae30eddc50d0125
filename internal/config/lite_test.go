package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultLiteConfig(t *testing.T) {
	cfg := DefaultLiteConfig()

	if cfg.PairCacheSize != 1024 {
		t.Errorf("Expected pair cache size 1024, got %d", cfg.PairCacheSize)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Errorf("Expected cache TTL 24h, got %s", cfg.CacheTTL)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("Expected HTTP port 8080, got %d", cfg.HTTPPort)
	}
	if cfg.Analysis.MinimumCases != 3 {
		t.Errorf("Expected minimum cases 3, got %d", cfg.Analysis.MinimumCases)
	}
	if err := cfg.Analysis.Validate(); err != nil {
		t.Errorf("Expected default analysis config to validate, got %v", err)
	}
}

func TestLoadLiteConfigFromEnv(t *testing.T) {
	t.Setenv("FAERS_SIGNAL_DATA_DIR", "/tmp/faers-test")
	t.Setenv("FAERS_SIGNAL_PAIR_CACHE_SIZE", "256")
	t.Setenv("FAERS_SIGNAL_CACHE_TTL", "1h")
	t.Setenv("FAERS_SIGNAL_HTTP_PORT", "9090")
	t.Setenv("FAERS_SIGNAL_LOG_LEVEL", "debug")
	t.Setenv("FAERS_SIGNAL_MINIMUM_CASES", "5")
	t.Setenv("FAERS_SIGNAL_CONFIDENCE_LEVEL", "0.99")

	cfg := LoadLiteConfig()

	if cfg.DataDir != "/tmp/faers-test" {
		t.Errorf("Expected data dir /tmp/faers-test, got %s", cfg.DataDir)
	}
	if cfg.PairCacheSize != 256 {
		t.Errorf("Expected pair cache size 256, got %d", cfg.PairCacheSize)
	}
	if cfg.CacheTTL != time.Hour {
		t.Errorf("Expected cache TTL 1h, got %s", cfg.CacheTTL)
	}
	if cfg.HTTPPort != 9090 {
		t.Errorf("Expected HTTP port 9090, got %d", cfg.HTTPPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.Analysis.MinimumCases != 5 {
		t.Errorf("Expected minimum cases 5, got %d", cfg.Analysis.MinimumCases)
	}
	if cfg.Analysis.ConfidenceLevel != 0.99 {
		t.Errorf("Expected confidence level 0.99, got %f", cfg.Analysis.ConfidenceLevel)
	}
}

func TestLoadLiteConfigIgnoresInvalidValues(t *testing.T) {
	t.Setenv("FAERS_SIGNAL_PAIR_CACHE_SIZE", "not-a-number")
	t.Setenv("FAERS_SIGNAL_HTTP_PORT", "-1")
	t.Setenv("FAERS_SIGNAL_MINIMUM_CASES", "-3")

	cfg := LoadLiteConfig()

	if cfg.PairCacheSize != 1024 {
		t.Errorf("Expected default pair cache size, got %d", cfg.PairCacheSize)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("Expected default HTTP port, got %d", cfg.HTTPPort)
	}
	if cfg.Analysis.MinimumCases != 3 {
		t.Errorf("Expected default minimum cases, got %d", cfg.Analysis.MinimumCases)
	}
}

func TestLiteConfigPaths(t *testing.T) {
	cfg := DefaultLiteConfig()
	cfg.DataDir = "/data/faers"

	if got := cfg.StoreDBPath(); got != filepath.Join("/data/faers", "reports.db") {
		t.Errorf("Unexpected store path: %s", got)
	}
	if got := cfg.ExportDir(); got != filepath.Join("/data/faers", "exports") {
		t.Errorf("Unexpected export dir: %s", got)
	}
}
