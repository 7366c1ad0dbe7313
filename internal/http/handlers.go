package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/lifecycle"
	"github.com/kjstillabower/air-quality-service/internal/models"
	"github.com/kjstillabower/air-quality-service/internal/observability"
	"github.com/kjstillabower/air-quality-service/internal/service"
	"github.com/kjstillabower/air-quality-service/internal/traffic"
	"github.com/kjstillabower/air-quality-service/internal/validation"
)

// Client-facing error messages. Diagnostics stay in the logs.
const (
	msgCityNotFound     = "City not found"
	msgLookupFailed     = "Failed to fetch AQI data"
	msgSuggestionFailed = "Failed to fetch city suggestions"
	msgCityRequired     = "City name is required"
	msgCityTooLong      = "City name is too long"
	msgCityInvalidChars = "City name contains invalid characters"
)

// DefaultCityMaxLength bounds the city query parameter when no limit is configured.
const DefaultCityMaxLength = 200

// Lookuper resolves a raw city input to a reading. *service.AqiService implements it.
type Lookuper interface {
	Lookup(ctx context.Context, cityInput string) (models.AqiReading, error)
}

// CitySuggester returns dropdown entries. *service.Suggester implements it.
type CitySuggester interface {
	Suggest(ctx context.Context, term string, count int) ([]models.CitySuggestion, error)
}

// HealthConfig holds thresholds and probes for the health handler.
type HealthConfig struct {
	Service string
	Version string

	// Degraded when the lookup error share over DegradedWindow reaches DegradedErrorPct,
	// once at least DegradedMinLookups outcomes are in the window.
	DegradedWindow     time.Duration
	DegradedErrorPct   int
	DegradedMinLookups int

	// CachePing, when set, reports remote cache reachability in checks.cache.
	CachePing func() error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	lookup           Lookuper
	suggester        CitySuggester
	healthConfig     *HealthConfig
	logger           *zap.Logger
	cityMaxLength    int
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. suggester and healthConfig may be nil; cityMaxLength <= 0
// uses DefaultCityMaxLength.
func NewHandler(lookup Lookuper, suggester CitySuggester, healthConfig *HealthConfig, logger *zap.Logger, cityMaxLength int) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cityMaxLength <= 0 {
		cityMaxLength = DefaultCityMaxLength
	}
	return &Handler{
		lookup:        lookup,
		suggester:     suggester,
		healthConfig:  healthConfig,
		logger:        logger,
		cityMaxLength: cityMaxLength,
	}
}

// Search handles GET /api/search?city=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	city, err := validation.ValidateCity(r.URL.Query().Get("city"), h.cityMaxLength)
	if err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	// A client that disconnects mid-lookup does not abort the upstream calls; the result
	// still lands in the cache for the next request.
	ctx := context.WithoutCancel(r.Context())
	reading, err := h.lookup.Lookup(ctx, city)
	if err != nil {
		writeLookupError(w, r, err)
		return
	}
	traffic.RecordSuccess()
	writeJSON(w, http.StatusOK, reading)
}

// Suggest handles GET /api/suggest?q=&count=. When geocoding fails the suggester's fallback
// list is served with 200; only a failure with no fallback is a 500.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	if h.suggester == nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	q := r.URL.Query()
	count, _ := strconv.Atoi(q.Get("count"))

	results, err := h.suggester.Suggest(r.Context(), q.Get("q"), count)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Warn("suggest failed", zap.Error(err))
		if results == nil {
			writeError(w, http.StatusInternalServerError, msgSuggestionFailed)
			return
		}
	}
	if results == nil {
		results = []models.CitySuggestion{}
	}
	writeJSON(w, http.StatusOK, results)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"upstream": "healthy"}
	if result.reason == "error_rate_breach" {
		checks["upstream"] = "unhealthy"
	}
	svc, version := "air-quality-service", "dev"
	if h.healthConfig != nil {
		if h.healthConfig.CachePing != nil {
			checks["cache"] = "healthy"
			if err := h.healthConfig.CachePing(); err != nil {
				checks["cache"] = "unhealthy"
				h.logger.Debug("cache ping failed", zap.Error(err))
			}
		}
		if h.healthConfig.Service != "" {
			svc = h.healthConfig.Service
		}
		if h.healthConfig.Version != "" {
			version = h.healthConfig.Version
		}
	}
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   svc,
		"version":   version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates, in order: shutting-down, degraded, healthy.
// A failing cache probe is reported in checks only; lookups fall back to upstream on cache errors.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		threshold := float64(h.healthConfig.DegradedErrorPct) / 100
		if traffic.Degraded(h.healthConfig.DegradedWindow, threshold, h.healthConfig.DegradedMinLookups) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": message}.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// validationMessage maps a validation error to the message shown to clients.
func validationMessage(err error) string {
	switch {
	case errors.Is(err, validation.ErrCityTooLong):
		return msgCityTooLong
	case errors.Is(err, validation.ErrCityInvalidChars):
		return msgCityInvalidChars
	default:
		return msgCityRequired
	}
}

// writeLookupError maps a lookup failure to 404 or 500 by error kind and records the outcome
// for the health check. Not-found counts as a healthy outcome.
func writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context())
	if errors.Is(err, service.ErrCityNotFound) {
		traffic.RecordSuccess()
		logger.Debug("city not found", zap.Error(err))
		writeError(w, http.StatusNotFound, msgCityNotFound)
		return
	}
	traffic.RecordError()
	logger.Debug("lookup failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, msgLookupFailed)
}
