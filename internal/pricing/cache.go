package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/manuchak/detecta-core/config"
	"github.com/manuchak/detecta-core/internal/logger"
)

const bandCacheKey = "pricing:armed_km_rates:v1"

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opt.DB = cfg.DB
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RedisBandCache is a read-through cache in front of another BandSource.
// Redis failures fall through to the wrapped source.
type RedisBandCache struct {
	client *redis.Client
	source BandSource
	ttl    time.Duration
}

// NewRedisBandCache wraps source with a Redis cache entry living ttl
func NewRedisBandCache(client *redis.Client, source BandSource, ttl time.Duration) *RedisBandCache {
	return &RedisBandCache{client: client, source: source, ttl: ttl}
}

// Bands returns cached bands or loads and caches them. Empty results are not
// cached so a newly configured table is picked up immediately.
func (c *RedisBandCache) Bands(ctx context.Context) ([]RateBand, error) {
	raw, err := c.client.Get(ctx, bandCacheKey).Bytes()
	switch {
	case err == nil:
		var bands []RateBand
		if uerr := json.Unmarshal(raw, &bands); uerr == nil {
			return bands, nil
		}
		logger.Warn("Discarding corrupt rate band cache entry")
	case errors.Is(err, redis.Nil):
	default:
		logger.Warn("Rate band cache read failed", "error", err)
	}

	bands, err := c.source.Bands(ctx)
	if err != nil {
		return nil, err
	}
	if len(bands) == 0 {
		return bands, nil
	}

	payload, err := json.Marshal(bands)
	if err != nil {
		return bands, nil
	}
	if err := c.client.Set(ctx, bandCacheKey, payload, c.ttl).Err(); err != nil {
		logger.Warn("Rate band cache write failed", "error", err)
	}
	return bands, nil
}

// Invalidate drops the cached bands
func (c *RedisBandCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, bandCacheKey).Err()
}
