// Package redis caches model detection responses in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"caseguard/internal/config"
	"caseguard/internal/port"
)

type detectionCache struct {
	client goredis.UniversalClient
}

// NewClient opens a Redis client and verifies connectivity.
func NewClient(ctx context.Context, cfg *config.CacheConfig) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// NewDetectionCache wraps client as a DetectionCache.
func NewDetectionCache(client goredis.UniversalClient) port.DetectionCache {
	return &detectionCache{client: client}
}

func (c *detectionCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("detectionCache.Get: %w", err)
	}
	return val, true, nil
}

func (c *detectionCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("detectionCache.Set: %w", err)
	}
	return nil
}
