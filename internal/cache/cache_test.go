package cache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/air-quality-service/internal/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func ptr(f float64) *float64 { return &f }

func testReading(city string) models.AqiReading {
	aqi := 42
	return models.AqiReading{
		AQI:  &aqi,
		City: models.CityLabel{Name: city},
		IAQI: models.IAQI{PM25: models.Value{V: ptr(9)}, T: models.Value{V: ptr(14.2)}},
		Time: models.ReadingAt{S: "2024-05-01T12:00:00.000Z"},
	}
}

// TestInMemoryCache_GetSet verifies that Set stores values and Get retrieves them.
func TestInMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	val := testReading("London, United Kingdom")
	if err := c.Set(ctx, "london", val, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok, err := c.Get(ctx, "london")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.City.Name != val.City.Name || *got.AQI != 42 || *got.IAQI.T.V != 14.2 {
		t.Errorf("Get() = %+v, want %+v", got, val)
	}
}

// TestInMemoryCache_Set_StripsSource verifies entries are stored untagged.
func TestInMemoryCache_Set_StripsSource(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	_ = c.Set(ctx, "london", testReading("London").WithSource(models.SourceAPI), time.Minute)
	got, _, _ := c.Get(ctx, "london")
	if got.Source != "" {
		t.Errorf("Source = %q, want empty", got.Source)
	}
}

func TestInMemoryCache_Get_Miss(t *testing.T) {
	c := NewInMemoryCache()

	_, ok, err := c.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if ok {
		t.Error("Get() ok = true, want false for miss")
	}
}

// TestInMemoryCache_Expiry verifies the entry lives exactly until TTL and is removed by the
// Get that observes it expired.
func TestInMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	c := NewInMemoryCacheWithClock(clock.Now)

	_ = c.Set(ctx, "london", testReading("London"), DefaultTTL)

	clock.Advance(DefaultTTL - time.Second)
	if _, ok, _ := c.Get(ctx, "london"); !ok {
		t.Fatal("Get() before TTL ok = false, want true")
	}

	clock.Advance(time.Second)
	if _, ok, _ := c.Get(ctx, "london"); ok {
		t.Error("Get() at TTL ok = true, want false")
	}
	if n := c.Len(); n != 0 {
		t.Errorf("Len() = %d after expired Get, want 0", n)
	}
}

// TestInMemoryCache_NoSlidingExpiry verifies reads do not extend the lifetime.
func TestInMemoryCache_NoSlidingExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewInMemoryCacheWithClock(clock.Now)

	_ = c.Set(ctx, "paris", testReading("Paris"), 10*time.Minute)
	for i := 0; i < 9; i++ {
		clock.Advance(time.Minute)
		_, _, _ = c.Get(ctx, "paris")
	}
	clock.Advance(time.Minute)
	if _, ok, _ := c.Get(ctx, "paris"); ok {
		t.Error("entry survived past TTL despite reads")
	}
}

func TestInMemoryCache_SetOverwritesAndResetsTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewInMemoryCacheWithClock(clock.Now)

	_ = c.Set(ctx, "paris", testReading("Paris, France"), time.Minute)
	clock.Advance(50 * time.Second)
	_ = c.Set(ctx, "paris", testReading("Paris, FR"), time.Minute)
	clock.Advance(50 * time.Second)

	got, ok, _ := c.Get(ctx, "paris")
	if !ok {
		t.Fatal("Get() ok = false, want true after overwrite")
	}
	if got.City.Name != "Paris, FR" {
		t.Errorf("City = %q, want overwritten value", got.City.Name)
	}
}

func TestInMemoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = c.Set(ctx, "london", testReading("London"), time.Minute)
		}()
		go func() {
			defer wg.Done()
			_, _, _ = c.Get(ctx, "london")
		}()
	}
	wg.Wait()

	if _, ok, _ := c.Get(ctx, "london"); !ok {
		t.Error("Get() ok = false after concurrent writes")
	}
}

func TestExpirationSeconds(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want int32
	}{
		{time.Hour, 3600},
		{90 * time.Second, 90},
		{0, 3600},
		{-time.Second, 3600},
		{31 * 24 * time.Hour, 3600},
	}
	for _, tt := range tests {
		if got := expirationSeconds(tt.ttl); got != tt.want {
			t.Errorf("expirationSeconds(%v) = %d, want %d", tt.ttl, got, tt.want)
		}
	}
}

func TestMemcacheKey(t *testing.T) {
	if got := memcacheKey("new york"); got != "aqi:new_york" {
		t.Errorf("memcacheKey() = %q, want aqi:new_york", got)
	}
	if got := memcacheKey("paris, france"); got != "aqi:paris,_france" {
		t.Errorf("memcacheKey() = %q, want aqi:paris,_france", got)
	}

	long := memcacheKey(strings.Repeat("é", 200))
	if len(long) > maxKeyLen || !strings.HasPrefix(long, "aqi:sha256:") {
		t.Errorf("memcacheKey(long) = %q, want hashed key within %d bytes", long, maxKeyLen)
	}
	if long != memcacheKey(strings.Repeat("é", 200)) {
		t.Error("hashed key is not stable")
	}
}

func TestParseAddrs(t *testing.T) {
	got := parseAddrs(" host1:11211, ,host2:11211 ")
	if len(got) != 2 || got[0] != "host1:11211" || got[1] != "host2:11211" {
		t.Errorf("parseAddrs() = %v", got)
	}
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	if _, err := NewRedisCache("http://not-redis"); err == nil {
		t.Error("NewRedisCache() error = nil, want error for non-redis scheme")
	}
}
