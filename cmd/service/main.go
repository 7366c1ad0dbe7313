package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/air-quality-service/internal/cache"
	"github.com/kjstillabower/air-quality-service/internal/client"
	"github.com/kjstillabower/air-quality-service/internal/config"
	httphandler "github.com/kjstillabower/air-quality-service/internal/http"
	"github.com/kjstillabower/air-quality-service/internal/lifecycle"
	"github.com/kjstillabower/air-quality-service/internal/observability"
	"github.com/kjstillabower/air-quality-service/internal/service"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	lifecycle.MarkStarted(time.Now())

	opts := client.Options{Timeout: cfg.UpstreamTimeout, Limiter: newUpstreamLimiter(cfg)}
	if opts.Limiter != nil {
		logger.Info("upstream throttle enabled",
			zap.Float64("rps", cfg.UpstreamRateLimitRPS),
			zap.Int("burst", cfg.UpstreamRateLimitBurst))
	}
	geocoder, err := client.NewGeocodingClient(cfg.GeocodingURL, opts)
	if err != nil {
		logger.Fatal("geocoding client", zap.Error(err))
	}
	airQuality, err := client.NewAirQualityClient(cfg.AirQualityURL, opts)
	if err != nil {
		logger.Fatal("air quality client", zap.Error(err))
	}
	weather, err := client.NewWeatherClient(cfg.WeatherURL, opts)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	backend, err := buildCache(cfg)
	if err != nil {
		logger.Fatal("cache", zap.String("backend", cfg.CacheBackend), zap.Error(err))
	}
	logger.Info("cache backend", zap.String("backend", cfg.CacheBackend), zap.Duration("ttl", cfg.CacheTTL))

	aqiService := service.NewAqiService(geocoder, airQuality, weather, backend.cache, cfg.CacheTTL)
	if cfg.Coalesce {
		aqiService.EnableCoalescing()
		logger.Info("request coalescing enabled")
	}

	popular := cfg.PopularCities
	if len(popular) == 0 {
		popular = service.DefaultPopularCities
	}
	suggester := service.NewSuggester(geocoder, popular)

	tracked := cfg.TrackedCities
	if len(tracked) == 0 {
		tracked = popular
	}
	observability.SetTrackedCities(tracked)

	var scheduler *cron.Cron
	if cfg.WarmingEnabled {
		scheduler = startWarming(aqiService, logger, cfg.WarmingSchedule, popular)
	}

	healthConfig := &httphandler.HealthConfig{
		Service:            "air-quality-service",
		Version:            cfg.Version,
		DegradedWindow:     cfg.DegradedWindow,
		DegradedErrorPct:   cfg.DegradedErrorPct,
		DegradedMinLookups: cfg.DegradedMinLookups,
		CachePing:          backend.ping,
	}
	handler := httphandler.NewHandler(aqiService, suggester, healthConfig, logger, cfg.CityMaxLength)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httphandler.NewRouter(handler, logger, cfg.CORSAllowedOrigins),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 3*cfg.UpstreamTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			logger.Warn("cache warming still running at shutdown")
		}
	}

	if err := observability.FlushTelemetry(logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if backend.closer != nil {
		if err := backend.closer.Close(); err != nil {
			logger.Error("cache close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete", zap.Duration("uptime", lifecycle.Uptime(time.Now())))
}

// cacheBackend bundles the selected cache with its optional health probe and closer.
type cacheBackend struct {
	cache  cache.Cache
	ping   func() error
	closer io.Closer
}

func buildCache(cfg *config.Config) (cacheBackend, error) {
	switch cfg.CacheBackend {
	case config.BackendMemcached:
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return cacheBackend{}, err
		}
		return cacheBackend{cache: mc, ping: mc.Ping, closer: mc}, nil
	case config.BackendRedis:
		rc, err := cache.NewRedisCache(cfg.RedisURL)
		if err != nil {
			return cacheBackend{}, err
		}
		return cacheBackend{cache: rc, ping: rc.Ping, closer: rc}, nil
	default:
		return cacheBackend{cache: cache.NewInMemoryCache()}, nil
	}
}

// newUpstreamLimiter returns nil when the outbound throttle is disabled.
func newUpstreamLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.UpstreamRateLimitRPS <= 0 {
		return nil
	}
	burst := cfg.UpstreamRateLimitBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.UpstreamRateLimitRPS), burst)
}

// startWarming warms cities once in the background and then on schedule.
func startWarming(refresher cache.Refresher, logger *zap.Logger, schedule string, cities []string) *cron.Cron {
	warmer := cache.NewCacheWarmer(refresher, logger)
	go func() {
		if err := warmer.Warm(context.Background(), cities); err != nil {
			logger.Warn("initial cache warming failed", zap.Error(err))
		}
	}()
	c, err := warmer.Schedule(context.Background(), schedule, cities)
	if err != nil {
		logger.Error("cache warming schedule", zap.Error(err))
		return nil
	}
	logger.Info("cache warming scheduled", zap.String("schedule", schedule), zap.Int("cities", len(cities)))
	return c
}
