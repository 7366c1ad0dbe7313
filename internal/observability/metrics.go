package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Open-Meteo call rate per api (geocoding, air_quality, weather). Watch for: error vs success ratio.
	UpstreamAPICallsTotal *prometheus.CounterVec

	// Open-Meteo latency per api. Watch for: p95 > 2s (upstream degradation).
	UpstreamAPIDuration *prometheus.HistogramVec

	// Time spent waiting on the outbound throttle. Non-zero means the quota limiter is engaged.
	UpstreamThrottleWaitSeconds prometheus.Histogram

	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Cache backend errors by operation (get, set) and category (timeout, connection, unknown).
	CacheErrorsTotal *prometheus.CounterVec

	// Lookup outcomes: api, cache, not_found, upstream_error.
	LookupsTotal *prometheus.CounterVec

	// Per-city lookup count (allow-list; others go to "other").
	LookupsByCityTotal *prometheus.CounterVec

	// Lookups that joined an in-flight pipeline for the same key instead of starting one.
	LookupsCoalescedTotal prometheus.Counter

	CacheWarmingTotal           prometheus.Counter
	CacheWarmingErrorsTotal     prometheus.Counter
	CacheWarmingDurationSeconds prometheus.Histogram

	trackedCitiesMu sync.RWMutex
	trackedCities   map[string]struct{}
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamApiCallsTotal",
			Help: "Total number of Open-Meteo API calls",
		},
		[]string{"api", "status"},
	)
	UpstreamAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamApiDurationSeconds",
			Help:    "Open-Meteo API latency in seconds (per request)",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"api", "status"},
	)
	UpstreamThrottleWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upstreamThrottleWaitSeconds",
			Help:    "Time spent waiting for the outbound rate limiter before an upstream call",
			Buckets: []float64{.001, .01, .05, .1, .5, 1, 5},
		},
	)
	CacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of lookups served from cache",
		},
	)
	CacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheMissesTotal",
			Help: "Total number of lookups that missed the cache",
		},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Cache backend errors by operation and category",
		},
		[]string{"operation", "category"},
	)
	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookupsTotal",
			Help: "Total number of AQI lookups by outcome",
		},
		[]string{"outcome"},
	)
	LookupsByCityTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookupsByCityTotal",
			Help: "AQI lookups by city (allow-list; others use city=other)",
		},
		[]string{"city"},
	)
	LookupsCoalescedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lookupsCoalescedTotal",
			Help: "Lookups that shared an in-flight upstream pipeline",
		},
	)
	CacheWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingTotal",
			Help: "Total number of cache warming runs",
		},
	)
	CacheWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cacheWarmingErrorsTotal",
			Help: "Cache warming runs with at least one failed city",
		},
	)
	CacheWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cacheWarmingDurationSeconds",
			Help:    "Duration of cache warming runs",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamAPICallsTotal, UpstreamAPIDuration, UpstreamThrottleWaitSeconds,
		CacheHitsTotal, CacheMissesTotal, CacheErrorsTotal,
		LookupsTotal, LookupsByCityTotal, LookupsCoalescedTotal,
		CacheWarmingTotal, CacheWarmingErrorsTotal, CacheWarmingDurationSeconds,
	)
}

// SetTrackedCities sets the allow-list for per-city metrics. Untracked cities increment "other".
func SetTrackedCities(cities []string) {
	trackedCitiesMu.Lock()
	defer trackedCitiesMu.Unlock()
	trackedCities = make(map[string]struct{}, len(cities))
	for _, c := range cities {
		trackedCities[MetricCityLabel(c)] = struct{}{}
	}
}

// RecordLookup counts a lookup outcome and attributes it to the city label.
func RecordLookup(city, outcome string) {
	LookupsTotal.WithLabelValues(outcome).Inc()
	label := MetricCityLabel(city)
	trackedCitiesMu.RLock()
	_, ok := trackedCities[label]
	trackedCitiesMu.RUnlock()
	if !ok {
		label = "other"
	}
	LookupsByCityTotal.WithLabelValues(label).Inc()
}

// MetricCityLabel normalizes a city for use as a metric label. Only the part before the
// first comma is kept so "Paris, France" and "paris" share a series.
func MetricCityLabel(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
