package domain

import (
	"fmt"
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// CacheConfig represents the Redis run-result cache configuration
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// StoreErrorPolicy selects how a run treats store-access failures for
// individual pairs.
type StoreErrorPolicy string

const (
	// SKIP_PAIR records a STORE_ERROR exclusion and continues with the
	// remaining pairs, producing a partial result.
	SKIP_PAIR StoreErrorPolicy = "skip"
	// ABORT_RUN fails the run on the first store error.
	ABORT_RUN StoreErrorPolicy = "abort"
)

// IsValid validates the store-error policy.
func (p StoreErrorPolicy) IsValid() bool {
	switch p {
	case SKIP_PAIR, ABORT_RUN:
		return true
	default:
		return false
	}
}

// String returns the string representation of the policy.
func (p StoreErrorPolicy) String() string {
	return string(p)
}

// ThresholdConfig holds the signal / strong-signal cutoffs per metric.
// ROR bounds apply to the lower limit of the confidence interval and are
// strict (>); the other bounds are inclusive (>=).
type ThresholdConfig struct {
	PRRSignal       float64 `mapstructure:"prr_signal"`
	PRRStrong       float64 `mapstructure:"prr_strong"`
	RORLowerSignal  float64 `mapstructure:"ror_lower_signal"`
	RORLowerStrong  float64 `mapstructure:"ror_lower_strong"`
	ChiSquareSignal float64 `mapstructure:"chi_square_signal"`
	ChiSquareStrong float64 `mapstructure:"chi_square_strong"`
	CaseCountSignal int64   `mapstructure:"case_count_signal"`
	CaseCountStrong int64   `mapstructure:"case_count_strong"`
}

// AnalysisConfig holds the parameters of a disproportionality run.
type AnalysisConfig struct {
	// MinimumCases drops pairs with fewer than this many co-occurrence cases
	// before scoring. Conventional default is 3.
	MinimumCases int64 `mapstructure:"minimum_cases"`

	// RoleFilter lists the drug roles that count toward the substance side of
	// the contingency table. Default is primary suspect only.
	RoleFilter []string `mapstructure:"role_filter"`

	// ConfidenceLevel controls the ROR confidence interval width.
	// Default 0.95 (z = 1.96).
	ConfidenceLevel float64 `mapstructure:"confidence_level"`

	// OnStoreError selects the skip/abort policy for per-pair store failures.
	OnStoreError StoreErrorPolicy `mapstructure:"on_store_error"`

	// Workers bounds concurrent pair scoring. Zero means GOMAXPROCS.
	Workers int `mapstructure:"workers"`

	Thresholds ThresholdConfig `mapstructure:"thresholds"`
}

// DefaultThresholds returns the documented convention cutoffs.
func DefaultThresholds() ThresholdConfig {
	return ThresholdConfig{
		PRRSignal:       2,
		PRRStrong:       5,
		RORLowerSignal:  1,
		RORLowerStrong:  2,
		ChiSquareSignal: 4,
		ChiSquareStrong: 10,
		CaseCountSignal: 3,
		CaseCountStrong: 5,
	}
}

// DefaultAnalysisConfig returns the conventional analysis parameters.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		MinimumCases:    3,
		RoleFilter:      []string{string(PRIMARY_SUSPECT)},
		ConfidenceLevel: 0.95,
		OnStoreError:    ABORT_RUN,
		Workers:         0,
		Thresholds:      DefaultThresholds(),
	}
}

// Roles resolves the configured role filter into typed drug roles.
func (c *AnalysisConfig) Roles() ([]DrugRole, error) {
	if len(c.RoleFilter) == 0 {
		return []DrugRole{PRIMARY_SUSPECT}, nil
	}

	roles := make([]DrugRole, 0, len(c.RoleFilter))
	for _, s := range c.RoleFilter {
		role, err := ParseDrugRole(s)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// Validate checks all analysis parameters against their valid domains.
// A run must fail here, before any computation starts.
func (c *AnalysisConfig) Validate() error {
	if c.MinimumCases < 0 {
		return NewValidationError("analysis.minimum_cases", "must be non-negative", c.MinimumCases)
	}

	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return NewValidationError("analysis.confidence_level", "must be in the open interval (0,1)", c.ConfidenceLevel)
	}

	if !c.OnStoreError.IsValid() {
		return NewValidationError("analysis.on_store_error", "must be 'skip' or 'abort'", string(c.OnStoreError))
	}

	if c.Workers < 0 {
		return NewValidationError("analysis.workers", "must be non-negative", c.Workers)
	}

	if _, err := c.Roles(); err != nil {
		return NewValidationError("analysis.role_filter", err.Error(), c.RoleFilter)
	}

	t := c.Thresholds
	for _, check := range []struct {
		field  string
		signal float64
		strong float64
	}{
		{"prr", t.PRRSignal, t.PRRStrong},
		{"ror_lower", t.RORLowerSignal, t.RORLowerStrong},
		{"chi_square", t.ChiSquareSignal, t.ChiSquareStrong},
		{"case_count", float64(t.CaseCountSignal), float64(t.CaseCountStrong)},
	} {
		if check.signal < 0 || check.strong < 0 {
			return NewValidationError(
				fmt.Sprintf("analysis.thresholds.%s", check.field),
				"thresholds must be non-negative",
				check)
		}
		if check.strong < check.signal {
			return NewValidationError(
				fmt.Sprintf("analysis.thresholds.%s", check.field),
				"strong-signal threshold must not be below signal threshold",
				check)
		}
	}

	return nil
}
