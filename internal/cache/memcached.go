package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/air-quality-service/internal/models"
)

const keyPrefix = "aqi:"

// MemcachedCache implements Cache using memcached. Expiry is enforced server-side.
type MemcachedCache struct {
	client *memcache.Client
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedCache{client: client}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// maxKeyLen is memcached's key length limit in bytes.
const maxKeyLen = 250

// memcacheKey prefixes k and replaces characters memcached rejects (spaces, control chars).
// Keys over the length limit are replaced by a hash of the city.
func memcacheKey(k string) string {
	key := keyPrefix + strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return '_'
		}
		return r
	}, k)
	if len(key) > maxKeyLen {
		sum := sha256.Sum256([]byte(k))
		return keyPrefix + "sha256:" + hex.EncodeToString(sum[:])
	}
	return key
}

// Get implements Cache.Get. Returns false, nil on cache miss; false, err on error.
func (c *MemcachedCache) Get(ctx context.Context, key string) (models.AqiReading, bool, error) {
	if ctx.Err() != nil {
		return models.AqiReading{}, false, ctx.Err()
	}
	item, err := c.client.Get(memcacheKey(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return models.AqiReading{}, false, nil
		}
		return models.AqiReading{}, false, err
	}
	var data models.AqiReading
	if err := json.Unmarshal(item.Value, &data); err != nil {
		return models.AqiReading{}, false, err
	}
	return data, true, nil
}

// Set implements Cache.Set.
func (c *MemcachedCache) Set(ctx context.Context, key string, value models.AqiReading, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	value.Source = ""
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(&memcache.Item{
		Key:        memcacheKey(key),
		Value:      raw,
		Expiration: expirationSeconds(ttl),
	})
}

// expirationSeconds converts ttl to memcached's relative expiration. Values beyond 30 days
// would be read as a unix timestamp, so they fall back to the default TTL.
func expirationSeconds(ttl time.Duration) int32 {
	const maxRelativeExp = 30 * 24 * 60 * 60
	sec := int64(ttl / time.Second)
	if sec <= 0 || sec > maxRelativeExp {
		return int32(DefaultTTL / time.Second)
	}
	return int32(sec)
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
