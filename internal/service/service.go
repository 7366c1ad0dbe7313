package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/air-quality-service/internal/cache"
	"github.com/kjstillabower/air-quality-service/internal/client"
	"github.com/kjstillabower/air-quality-service/internal/models"
	"github.com/kjstillabower/air-quality-service/internal/observability"
)

// Lookup outcome labels for metrics.
const (
	outcomeAPI      = "api"
	outcomeCache    = "cache"
	outcomeNotFound = "not_found"
	outcomeUpstream = "upstream_error"
)

// AqiService resolves a city name to a combined air-quality and temperature reading using a
// cache-aside pattern in front of the geocoding, air-quality and weather APIs.
type AqiService struct {
	geocoder   client.Geocoder
	airQuality client.AirQualityFetcher
	weather    client.WeatherFetcher
	cache      cache.Cache
	ttl        time.Duration
	now        func() time.Time

	// group is nil unless coalescing is enabled.
	group *singleflight.Group
}

// NewAqiService wires the three upstream clients and the cache. ttl is the lifetime of each
// cache entry from write time; zero or negative uses cache.DefaultTTL.
func NewAqiService(geocoder client.Geocoder, airQuality client.AirQualityFetcher, weather client.WeatherFetcher, c cache.Cache, ttl time.Duration) *AqiService {
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &AqiService{
		geocoder:   geocoder,
		airQuality: airQuality,
		weather:    weather,
		cache:      c,
		ttl:        ttl,
		now:        time.Now,
	}
}

// SetClock replaces the clock used for reading timestamps.
func (s *AqiService) SetClock(now func() time.Time) {
	s.now = now
}

// EnableCoalescing makes concurrent misses for the same cache key share one upstream fetch.
func (s *AqiService) EnableCoalescing() {
	s.group = &singleflight.Group{}
}

// Lookup returns the reading for cityInput. A fresh cache entry is returned tagged
// source="cache"; otherwise the upstream pipeline runs, the result is cached, and it is
// returned tagged source="api". Errors are *LookupError and match ErrCityNotFound or ErrUpstream.
func (s *AqiService) Lookup(ctx context.Context, cityInput string) (models.AqiReading, error) {
	key := NormalizeCity(cityInput)
	logger := observability.LoggerFromContext(ctx).With(zap.String("city", cityInput))

	if cached, ok := s.cacheGet(ctx, logger, key); ok {
		observability.CacheHitsTotal.Inc()
		observability.RecordLookup(cityInput, outcomeCache)
		logger.Debug("serving from cache", zap.String("key", key))
		return cached.WithSource(models.SourceCache), nil
	}
	observability.CacheMissesTotal.Inc()

	var (
		reading models.AqiReading
		err     error
	)
	if s.group != nil {
		var shared bool
		var v interface{}
		v, err, shared = s.group.Do(key, func() (interface{}, error) {
			return s.fetchAndStore(ctx, logger, key, cityInput)
		})
		if shared {
			observability.LookupsCoalescedTotal.Inc()
		}
		if err == nil {
			reading = v.(models.AqiReading)
		}
	} else {
		reading, err = s.fetchAndStore(ctx, logger, key, cityInput)
	}

	if err != nil {
		outcome := outcomeUpstream
		if isNotFound(err) {
			outcome = outcomeNotFound
		}
		observability.RecordLookup(cityInput, outcome)
		return models.AqiReading{}, err
	}
	observability.RecordLookup(cityInput, outcomeAPI)
	return reading.WithSource(models.SourceAPI), nil
}

// Refresh fetches cityInput from upstream and overwrites its cache entry regardless of freshness.
func (s *AqiService) Refresh(ctx context.Context, cityInput string) error {
	logger := observability.LoggerFromContext(ctx).With(zap.String("city", cityInput))
	_, err := s.fetchAndStore(ctx, logger, NormalizeCity(cityInput), cityInput)
	return err
}

func (s *AqiService) cacheGet(ctx context.Context, logger *zap.Logger, key string) (models.AqiReading, bool) {
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		logger.Warn("cache get failed, treating as miss", zap.String("key", key), zap.Error(err))
		return models.AqiReading{}, false
	}
	return cached, ok
}

// fetchAndStore runs geocode -> (air quality || weather) -> merge -> cache write.
func (s *AqiService) fetchAndStore(ctx context.Context, logger *zap.Logger, key, cityInput string) (models.AqiReading, error) {
	start := time.Now()
	query := GeocodingQuery(cityInput)
	logger.Debug("searching for city", zap.String("query", query))
	if query == "" {
		return models.AqiReading{}, notFound(cityInput, query)
	}

	locations, err := s.geocoder.Search(ctx, query, 1)
	if err != nil {
		logger.Error("geocoding failed", zap.String("query", query), zap.String("category", string(client.CategorizeError(err))), zap.Error(err))
		return models.AqiReading{}, upstream(cityInput, "geocoding", err)
	}
	if len(locations) == 0 {
		logger.Info("city not found", zap.String("query", query))
		return models.AqiReading{}, notFound(cityInput, query)
	}
	loc := locations[0]
	logger.Debug("found location",
		zap.String("name", loc.Name),
		zap.String("country", loc.Country),
		zap.Float64("latitude", loc.Latitude),
		zap.Float64("longitude", loc.Longitude))

	var (
		aq   models.AirQuality
		temp *float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		aq, err = s.airQuality.Current(gctx, loc.Latitude, loc.Longitude)
		if err != nil {
			return upstream(cityInput, "air_quality", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		temp, err = s.weather.CurrentTemperature(gctx, loc.Latitude, loc.Longitude)
		if err != nil {
			return upstream(cityInput, "weather", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("fetching AQI data failed", zap.String("category", string(client.CategorizeError(err))), zap.Error(err))
		return models.AqiReading{}, err
	}

	reading := buildReading(loc, aq, temp, s.now())

	if err := s.cache.Set(ctx, key, reading, s.ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(err)).Inc()
		logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	logger.Info("fetched AQI data",
		zap.String("location", reading.City.Name),
		zap.Duration("duration", time.Since(start)))
	return reading, nil
}

// buildReading merges the upstream responses into the response shape the UI renders.
func buildReading(loc models.GeoLocation, aq models.AirQuality, temp *float64, at time.Time) models.AqiReading {
	return models.AqiReading{
		AQI:  roundAQI(aq.USAQI),
		City: models.CityLabel{Name: fmt.Sprintf("%s, %s", loc.Name, loc.Country)},
		IAQI: models.IAQI{
			PM25: models.Value{V: aq.PM25},
			PM10: models.Value{V: aq.PM10},
			O3:   models.Value{V: aq.Ozone},
			NO2:  models.Value{V: aq.NitrogenDioxide},
			CO:   models.Value{V: aq.CarbonMonoxide},
			T:    models.Value{V: temp},
		},
		Time: models.NewReadingAt(at),
	}
}

func roundAQI(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") || strings.Contains(errStr, "connect") {
		return "connection"
	}
	return "unknown"
}
