package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/cache"
	"github.com/kjstillabower/air-quality-service/internal/config"
)

func TestBuildCache(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantPing bool
	}{
		{"in memory", config.Config{CacheBackend: config.BackendInMemory}, false},
		{"memcached", config.Config{CacheBackend: config.BackendMemcached, MemcachedAddrs: "localhost:11211"}, true},
		{"redis", config.Config{CacheBackend: config.BackendRedis, RedisURL: "redis://localhost:6379/0"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b, err := buildCache(&tc.cfg)
			if err != nil {
				t.Fatalf("buildCache() error = %v", err)
			}
			if b.cache == nil {
				t.Fatal("cache is nil")
			}
			if (b.ping != nil) != tc.wantPing || (b.closer != nil) != tc.wantPing {
				t.Errorf("ping/closer set = %v/%v, want %v", b.ping != nil, b.closer != nil, tc.wantPing)
			}
			if b.closer != nil {
				_ = b.closer.Close()
			}
		})
	}
}

func TestBuildCache_InvalidRedisURL(t *testing.T) {
	if _, err := buildCache(&config.Config{CacheBackend: config.BackendRedis, RedisURL: "not a url"}); err == nil {
		t.Error("buildCache() expected error for invalid redis URL")
	}
}

func TestNewUpstreamLimiter(t *testing.T) {
	if l := newUpstreamLimiter(&config.Config{}); l != nil {
		t.Error("limiter should be nil when rate_limit_rps is 0")
	}
	l := newUpstreamLimiter(&config.Config{UpstreamRateLimitRPS: 5, UpstreamRateLimitBurst: 0})
	if l == nil {
		t.Fatal("limiter is nil")
	}
	if l.Limit() != 5 || l.Burst() != 1 {
		t.Errorf("limiter = %v/%d, want 5/1", l.Limit(), l.Burst())
	}
}

type countingRefresher struct{ n atomic.Int32 }

func (r *countingRefresher) Refresh(ctx context.Context, city string) error {
	r.n.Add(1)
	return nil
}

var _ cache.Refresher = (*countingRefresher)(nil)

func TestStartWarming_RunsInitialPass(t *testing.T) {
	r := &countingRefresher{}
	c := startWarming(r, zap.NewNop(), "@every 1h", []string{"London", "Paris"})
	if c == nil {
		t.Fatal("startWarming() returned nil scheduler")
	}
	defer c.Stop()

	deadline := time.Now().Add(time.Second)
	for r.n.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := r.n.Load(); got != 2 {
		t.Errorf("refreshes = %d, want 2", got)
	}
}

func TestStartWarming_InvalidSchedule(t *testing.T) {
	if c := startWarming(&countingRefresher{}, zap.NewNop(), "nonsense", nil); c != nil {
		c.Stop()
		t.Error("startWarming() should return nil for an invalid schedule")
	}
}
