package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/observability"
)

// Refresher re-fetches a city from upstream and overwrites its cache entry. Implemented by
// the service layer; declared here to avoid an import cycle.
type Refresher interface {
	Refresh(ctx context.Context, city string) error
}

// CacheWarmer keeps popular cities in the cache by refreshing them on a schedule.
type CacheWarmer struct {
	refresher Refresher
	logger    *zap.Logger
}

// NewCacheWarmer creates a CacheWarmer. logger may be nil.
func NewCacheWarmer(refresher Refresher, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{refresher: refresher, logger: logger}
}

// Warm refreshes every city concurrently. Returns the joined errors of the cities that failed.
func (w *CacheWarmer) Warm(ctx context.Context, cities []string) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Info("warming cache", zap.Int("cities", len(cities)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, city := range cities {
		wg.Add(1)
		go func(city string) {
			defer wg.Done()
			if err := w.refresher.Refresh(ctx, city); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("warm %s: %w", city, err))
				mu.Unlock()
			}
		}(city)
	}
	wg.Wait()

	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.logger.Info("cache warming complete",
		zap.Int("cities", len(cities)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration))
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return errors.Join(errs...)
	}
	return nil
}

// Schedule registers a cron job that calls Warm for cities on the given spec
// (standard 5-field cron or descriptors like "@every 50m") and starts the scheduler.
// The returned cron must be stopped on shutdown.
func (w *CacheWarmer) Schedule(ctx context.Context, spec string, cities []string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if err := w.Warm(ctx, cities); err != nil {
			w.logger.Warn("scheduled cache warm failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cache warming schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
