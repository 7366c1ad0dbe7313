package http

import (
	"net/http"
	"strings"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/observability"
)

const corsMaxAgeSeconds = 600

// NewRouter registers the API, health and metrics routes with correlation ID and metrics
// middleware, wrapped in CORS for allowedOrigins. No origins means no CORS headers.
func NewRouter(h *Handler, logger *zap.Logger, allowedOrigins []string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/search", h.Search).Methods(http.MethodGet)
	api.HandleFunc("/suggest", h.Suggest).Methods(http.MethodGet)

	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	origins := corsOrigins(allowedOrigins)
	if len(origins) == 0 {
		return router
	}
	// Wraps the whole router so preflight OPTIONS requests are answered before route matching.
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", correlationHeader}),
		handlers.ExposedHeaders([]string{correlationHeader}),
		handlers.MaxAge(corsMaxAgeSeconds),
		handlers.OptionStatusCode(http.StatusNoContent),
	)(router)
}

// corsOrigins drops blanks and trailing slashes so "http://localhost:5173/" matches the
// Origin header a browser sends.
func corsOrigins(in []string) []string {
	var out []string
	for _, o := range in {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			out = append(out, o)
		}
	}
	return out
}
