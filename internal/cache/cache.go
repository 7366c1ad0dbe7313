package cache

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/air-quality-service/internal/models"
)

// DefaultTTL is how long a lookup result stays fresh.
const DefaultTTL = time.Hour

// Cache stores lookup results keyed by normalized city. Get returns data only if present
// and not expired; Set stores data for ttl from the time of the call.
type Cache interface {
	Get(ctx context.Context, key string) (models.AqiReading, bool, error)
	Set(ctx context.Context, key string, value models.AqiReading, ttl time.Duration) error
}

// InMemoryCache implements Cache with a mutex-guarded map. Expiry is lazy: an expired entry
// is removed by the Get that observes it. There is no capacity bound.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	now  func() time.Time
}

type cacheEntry struct {
	value     models.AqiReading
	expiresAt time.Time
}

// NewInMemoryCache creates an empty cache using the wall clock.
func NewInMemoryCache() *InMemoryCache {
	return NewInMemoryCacheWithClock(time.Now)
}

// NewInMemoryCacheWithClock creates an empty cache that reads time from now. Tests pass a
// fake clock to step past the TTL deterministically.
func NewInMemoryCacheWithClock(now func() time.Time) *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
		now:  now,
	}
}

// Get returns (data, true, nil) on a hit and (zero, false, nil) on a miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.AqiReading, bool, error) {
	c.mu.RLock()
	entry, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return models.AqiReading{}, false, nil
	}

	if !c.now().Before(entry.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, ok := c.data[key]; ok && !c.now().Before(cur.expiresAt) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return models.AqiReading{}, false, nil
	}

	return entry.value, true, nil
}

// Set stores value under key for ttl. The source tag is stripped so hits are tagged at read time.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.AqiReading, ttl time.Duration) error {
	value.Source = ""
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Len reports the number of stored entries, including expired ones not yet observed.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
