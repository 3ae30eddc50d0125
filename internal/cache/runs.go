// Package cache provides a Redis-backed cache for completed analysis runs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/faers-signal-server/internal/domain"
)

// RunCache stores completed run results keyed by snapshot and analysis
// parameters. A run is deterministic for a given snapshot and configuration,
// so a cached result is exactly what a fresh run would produce; keys embed
// the snapshot ID so new data naturally misses.
type RunCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
	log        *logrus.Logger
}

// NewRunCache creates a run cache from the given configuration and verifies
// the Redis connection.
func NewRunCache(config domain.CacheConfig, logger *logrus.Logger) (*RunCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RunCache{
		redis:      client,
		defaultTTL: config.DefaultTTL,
		log:        logger,
	}, nil
}

// CachedRun wraps a stored run result with cache metadata.
type CachedRun struct {
	Result    *domain.RunResult `json:"result"`
	CachedAt  time.Time         `json:"cached_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// RunKey derives the cache key for a run: a hash over the snapshot identity,
// the analysis configuration and the run parameters. Any change to any of
// the three produces a distinct key.
func RunKey(snapshotID string, cfg domain.AnalysisConfig, params interface{}) string {
	payload := struct {
		Snapshot string                `json:"snapshot"`
		Config   domain.AnalysisConfig `json:"config"`
		Params   interface{}           `json:"params"`
	}{snapshotID, cfg, params}

	// Marshaling a struct is deterministic: fields serialize in declaration
	// order, map keys are sorted.
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("runs:raw:%s", snapshotID)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("runs:%x", hash[:16])
}

// Get retrieves a cached run result. The second return value reports a hit;
// corrupted or expired entries are dropped and reported as misses.
func (c *RunCache) Get(ctx context.Context, key string) (*domain.RunResult, bool, error) {
	val, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached run: %w", err)
	}

	var cached CachedRun
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}

	c.log.WithFields(logrus.Fields{
		"key":    key,
		"run_id": cached.Result.RunID,
	}).Debug("Run cache hit")

	return cached.Result, true, nil
}

// Set stores a run result. A zero TTL uses the configured default.
func (c *RunCache) Set(ctx context.Context, key string, result *domain.RunResult, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}

	cached := CachedRun{
		Result:    result,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal cached run: %w", err)
	}

	return c.redis.Set(ctx, key, data, ttl).Err()
}

// InvalidateAll removes every cached run. Keys are opaque hashes, so
// per-snapshot targeting is not possible without a scan.
func (c *RunCache) InvalidateAll(ctx context.Context) error {
	keys, err := c.redis.Keys(ctx, "runs:*").Result()
	if err != nil {
		return fmt.Errorf("failed to list run cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	return c.redis.Del(ctx, keys...).Err()
}

// Ping checks if the Redis connection is alive.
func (c *RunCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RunCache) Close() error {
	return c.redis.Close()
}
