package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kjstillabower/air-quality-service/internal/models"
)

// RedisCache implements Cache using Redis string keys with server-side TTL.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache parses a redis:// URL and returns a RedisCache. The connection is lazy;
// call Ping to verify reachability.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opt)}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get implements Cache.Get. Returns false, nil on cache miss; false, err on error.
func (c *RedisCache) Get(ctx context.Context, key string) (models.AqiReading, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.AqiReading{}, false, nil
		}
		return models.AqiReading{}, false, err
	}
	var data models.AqiReading
	if err := json.Unmarshal(raw, &data); err != nil {
		return models.AqiReading{}, false, err
	}
	return data, true, nil
}

// Set implements Cache.Set.
func (c *RedisCache) Set(ctx context.Context, key string, value models.AqiReading, ttl time.Duration) error {
	value.Source = ""
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return c.client.Set(ctx, keyPrefix+key, raw, ttl).Err()
}

// Ping checks if Redis is reachable. Used for health checks.
func (c *RedisCache) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

// Close closes the client pool. Call during shutdown.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
