//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/air-quality-service/internal/cache"
	"github.com/kjstillabower/air-quality-service/internal/client"
	"github.com/kjstillabower/air-quality-service/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests against live Open-Meteo.
type IntegrationTestConfig struct {
	GeocodingURL  string
	AirQualityURL string
	WeatherURL    string
	CacheBackend  string // "in_memory", "memcached" or "redis"
	MemcachedAddr string
	RedisURL      string
}

// GetIntegrationConfig loads integration test configuration from the environment.
// Set SKIP_LIVE_UPSTREAM to skip tests that need network access to Open-Meteo.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	if os.Getenv("SKIP_LIVE_UPSTREAM") != "" {
		t.Skip("SKIP_LIVE_UPSTREAM set, skipping live integration test")
	}
	return IntegrationTestConfig{
		GeocodingURL:  envOr("GEOCODING_API_URL", client.DefaultGeocodingURL),
		AirQualityURL: envOr("AIR_QUALITY_API_URL", client.DefaultAirQualityURL),
		WeatherURL:    envOr("WEATHER_API_URL", client.DefaultWeatherURL),
		CacheBackend:  envOr("INTEGRATION_CACHE_BACKEND", "in_memory"),
		MemcachedAddr: envOr("MEMCACHED_ADDRS", "localhost:11211"),
		RedisURL:      envOr("REDIS_URL", "redis://localhost:6379/0"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// SetupIntegrationClients builds the three Open-Meteo clients.
func SetupIntegrationClients(t *testing.T, cfg IntegrationTestConfig) (*client.GeocodingClient, *client.AirQualityClient, *client.WeatherClient) {
	opts := client.Options{Timeout: 10 * time.Second}
	geo, err := client.NewGeocodingClient(cfg.GeocodingURL, opts)
	if err != nil {
		t.Fatalf("NewGeocodingClient() error = %v", err)
	}
	aq, err := client.NewAirQualityClient(cfg.AirQualityURL, opts)
	if err != nil {
		t.Fatalf("NewAirQualityClient() error = %v", err)
	}
	wx, err := client.NewWeatherClient(cfg.WeatherURL, opts)
	if err != nil {
		t.Fatalf("NewWeatherClient() error = %v", err)
	}
	return geo, aq, wx
}

// SetupIntegrationCache returns the configured backend, falling back to in-memory when the
// remote cache is unreachable.
func SetupIntegrationCache(t *testing.T, cfg IntegrationTestConfig) (cache.Cache, func()) {
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil && mc.Ping() == nil {
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
			return mc, func() { _ = mc.Close() }
		}
		t.Logf("Memcached not available, using in-memory cache")
	case "redis":
		rc, err := cache.NewRedisCache(cfg.RedisURL)
		if err == nil && rc.Ping() == nil {
			t.Logf("Using Redis cache at %s", cfg.RedisURL)
			return rc, func() { _ = rc.Close() }
		}
		t.Logf("Redis not available, using in-memory cache")
	}
	return cache.NewInMemoryCache(), func() {}
}

// SetupIntegrationService creates a fully configured lookup service and suggester.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.AqiService, *service.Suggester, cache.Cache, func()) {
	geo, aq, wx := SetupIntegrationClients(t, cfg)
	c, cleanup := SetupIntegrationCache(t, cfg)
	svc := service.NewAqiService(geo, aq, wx, c, time.Hour)
	return svc, service.NewSuggester(geo, nil), c, cleanup
}
