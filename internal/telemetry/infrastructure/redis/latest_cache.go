package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	telemetry "dtr-monitor/internal/telemetry/domain"
)

const defaultTTL = 90 * time.Second

// LatestCache is a read-through cache over a ReadingSource. Cache misses
// and Redis errors fall back to the inner source; a fresh value is written
// back with a short TTL so repeated poll cycles within the telemetry
// reporting interval avoid the database.
type LatestCache struct {
	client *redis.Client
	inner  telemetry.ReadingSource
	ttl    time.Duration
}

// CacheOption configures the cache.
type CacheOption func(*LatestCache)

// WithTTL overrides the cache entry TTL.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *LatestCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewLatestCache constructs a cache and verifies connectivity.
func NewLatestCache(ctx context.Context, addr, password string, db int, inner telemetry.ReadingSource, opts ...CacheOption) (*LatestCache, error) {
	if inner == nil {
		return nil, fmt.Errorf("latest cache: nil inner source")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("latest cache: redis ping: %w", err)
	}
	cache := &LatestCache{client: client, inner: inner, ttl: defaultTTL}
	for _, opt := range opts {
		opt(cache)
	}
	return cache, nil
}

// Close releases the redis client.
func (c *LatestCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// LatestByMeter implements telemetry.ReadingSource.
func (c *LatestCache) LatestByMeter(ctx context.Context, meterID string) (telemetry.MeterReading, bool, error) {
	if c == nil || c.inner == nil {
		return telemetry.MeterReading{}, false, fmt.Errorf("latest cache: nil source")
	}
	key := cacheKey(meterID)
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var reading telemetry.MeterReading
		if err := json.Unmarshal([]byte(raw), &reading); err == nil && reading.MeterID == meterID {
			return reading, true, nil
		}
	}

	reading, ok, err := c.inner.LatestByMeter(ctx, meterID)
	if err != nil || !ok {
		return reading, ok, err
	}
	if payload, err := json.Marshal(reading); err == nil {
		// Best effort; a write failure just means the next lookup hits the db.
		_ = c.client.Set(ctx, key, payload, c.ttl).Err()
	}
	return reading, true, nil
}

func cacheKey(meterID string) string {
	return fmt.Sprintf("meter:%s:latest", meterID)
}
