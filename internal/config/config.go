package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Cache backends accepted by cache.backend / CACHE_BACKEND.
const (
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"
	BackendRedis     = "redis"
)

// Config holds service configuration loaded from .env, YAML and env.
type Config struct {
	ServerPort string
	Version    string

	GeocodingURL           string
	AirQualityURL          string
	WeatherURL             string
	UpstreamTimeout        time.Duration
	UpstreamRateLimitRPS   float64
	UpstreamRateLimitBurst int

	CityMaxLength int
	Coalesce      bool

	CacheTTL     time.Duration
	CacheBackend string

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RedisURL string

	CORSAllowedOrigins []string

	ShutdownTimeout time.Duration

	DegradedWindow     time.Duration
	DegradedErrorPct   int
	DegradedMinLookups int

	PopularCities   []string
	WarmingEnabled  bool
	WarmingSchedule string

	TrackedCities []string
}

type fileConfig struct {
	Server struct {
		Port    string `yaml:"port"`
		Version string `yaml:"version"`
	} `yaml:"server"`

	Upstream struct {
		GeocodingURL   string  `yaml:"geocoding_url"`
		AirQualityURL  string  `yaml:"air_quality_url"`
		WeatherURL     string  `yaml:"weather_url"`
		Timeout        string  `yaml:"timeout"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"upstream"`

	Request struct {
		CityMaxLength int  `yaml:"city_max_length"`
		Coalesce      bool `yaml:"coalesce"`
	} `yaml:"request"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			URL string `yaml:"url"`
		} `yaml:"redis"`
		Warming struct {
			Enabled  bool   `yaml:"enabled"`
			Schedule string `yaml:"schedule"`
		} `yaml:"warming"`
	} `yaml:"cache"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Health struct {
		DegradedWindow     string `yaml:"degraded_window"`
		DegradedErrorPct   int    `yaml:"degraded_error_pct"`
		DegradedMinLookups int    `yaml:"degraded_min_lookups"`
	} `yaml:"health"`

	PopularCities []string `yaml:"popular_cities"`

	Metrics struct {
		TrackedCities []string `yaml:"tracked_cities"`
	} `yaml:"metrics"`
}

// Load reads configuration relative to the working directory. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadDir(cwd)
}

// LoadDir loads {dir}/.env (optional, never overriding the process environment), then
// {dir}/config/{ENV_NAME}.yaml (default dev), then applies env overrides:
// PORT, CACHE_BACKEND, MEMCACHED_ADDRS, REDIS_URL, CACHE_TTL, CORS_ALLOWED_ORIGINS.
func LoadDir(dir string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "8080")
	cfg.Version = firstNonEmpty(fc.Server.Version, "dev")

	cfg.GeocodingURL = firstNonEmpty(fc.Upstream.GeocodingURL, "https://geocoding-api.open-meteo.com/v1/search")
	cfg.AirQualityURL = firstNonEmpty(fc.Upstream.AirQualityURL, "https://air-quality-api.open-meteo.com/v1/air-quality")
	cfg.WeatherURL = firstNonEmpty(fc.Upstream.WeatherURL, "https://api.open-meteo.com/v1/forecast")
	cfg.UpstreamTimeout = parseDurationOrZero(fc.Upstream.Timeout, 10*time.Second)
	cfg.UpstreamRateLimitRPS = fc.Upstream.RateLimitRPS
	cfg.UpstreamRateLimitBurst = fc.Upstream.RateLimitBurst
	if cfg.UpstreamRateLimitBurst <= 0 {
		cfg.UpstreamRateLimitBurst = 1
	}

	cfg.CityMaxLength = fc.Request.CityMaxLength
	if cfg.CityMaxLength <= 0 {
		cfg.CityMaxLength = 200
	}
	cfg.Coalesce = fc.Request.Coalesce

	cfg.CacheTTL = parseDuration(firstNonEmpty(os.Getenv("CACHE_TTL"), fc.Cache.TTL), time.Hour)
	cfg.CacheBackend = strings.ToLower(firstNonEmpty(os.Getenv("CACHE_BACKEND"), fc.Cache.Backend, BackendInMemory))
	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.RedisURL = firstNonEmpty(os.Getenv("REDIS_URL"), fc.Cache.Redis.URL)

	cfg.WarmingEnabled = fc.Cache.Warming.Enabled
	cfg.WarmingSchedule = firstNonEmpty(fc.Cache.Warming.Schedule, "@every 50m")

	cfg.CORSAllowedOrigins = fc.CORS.AllowedOrigins
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); strings.TrimSpace(v) != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}
	cfg.DegradedMinLookups = fc.Health.DegradedMinLookups
	if cfg.DegradedMinLookups <= 0 {
		cfg.DegradedMinLookups = 5
	}

	cfg.PopularCities = fc.PopularCities
	cfg.TrackedCities = fc.Metrics.TrackedCities

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDuration parses s and returns defaultVal if parsing fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero returns defaultVal on empty input or parse error. Zero and negative
// values pass through so validate can reject them.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func validate(cfg *Config) error {
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if cfg.UpstreamRateLimitRPS < 0 {
		return fmt.Errorf("upstream.rate_limit_rps must not be negative, got %s", strconv.FormatFloat(cfg.UpstreamRateLimitRPS, 'f', -1, 64))
	}
	switch cfg.CacheBackend {
	case BackendInMemory, BackendMemcached:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return fmt.Errorf("cache.redis.url or REDIS_URL required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend must be in_memory, memcached or redis, got %q", cfg.CacheBackend)
	}
	if cfg.WarmingEnabled {
		if _, err := cron.ParseStandard(cfg.WarmingSchedule); err != nil {
			return fmt.Errorf("cache.warming.schedule %q: %w", cfg.WarmingSchedule, err)
		}
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("health.degraded_error_pct must be <= 100, got %d", cfg.DegradedErrorPct)
	}
	return nil
}
