// Package cache keeps short-lived copies of verification read models in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/repo"
)

const keyPrefix = "smartduka:verification:stats"

// StatsSource computes verification statistics.
type StatsSource interface {
	Stats(ctx context.Context, since time.Time) (repo.Stats, error)
}

// StatsCache serves Stats from Redis and falls back to the source on a miss
// or when Redis is unavailable.
type StatsCache struct {
	rdb    *redis.Client
	source StatsSource
	ttl    time.Duration
	logger *slog.Logger
}

// NewStatsCache returns a cache over source. A nil rdb disables caching.
func NewStatsCache(rdb *redis.Client, source StatsSource, ttl time.Duration, logger *slog.Logger) *StatsCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsCache{rdb: rdb, source: source, ttl: ttl, logger: logger}
}

func statsKey(since time.Time) string {
	return fmt.Sprintf("%s:%d", keyPrefix, since.UTC().Unix())
}

// Stats returns statistics for since, reading through the cache.
func (c *StatsCache) Stats(ctx context.Context, since time.Time) (repo.Stats, error) {
	if c.rdb == nil {
		return c.source.Stats(ctx, since)
	}
	key := statsKey(since)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var stats repo.Stats
		if jsonErr := json.Unmarshal(raw, &stats); jsonErr == nil {
			return stats, nil
		}
		c.logger.Warn("discarding undecodable stats cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("stats cache read failed", "key", key, "error", err)
	}

	stats, err := c.source.Stats(ctx, since)
	if err != nil {
		return repo.Stats{}, err
	}
	if data, err := json.Marshal(stats); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("stats cache write failed", "key", key, "error", err)
		}
	}
	return stats, nil
}

// Invalidate drops every cached stats entry. It is called after invoice
// status changes so dashboards do not lag behind a verification.
func (c *StatsCache) Invalidate(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, keyPrefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Emit implements the event publisher contract so the cache can sit in an
// event fanout and drop stale totals whenever an invoice changes.
func (c *StatsCache) Emit(ctx context.Context, _ string, _ interface{}) error {
	return c.Invalidate(ctx)
}
