package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetrics_Usable verifies label dimensions match usage in client, http, service and cache.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/api/search", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/search").Observe(0.01)
	UpstreamAPICallsTotal.WithLabelValues("geocoding", "success").Inc()
	UpstreamAPIDuration.WithLabelValues("air_quality", "server_error").Observe(0.1)
	UpstreamThrottleWaitSeconds.Observe(0)
	CacheHitsTotal.Inc()
	CacheMissesTotal.Inc()
	CacheErrorsTotal.WithLabelValues("get", "timeout").Inc()
	LookupsCoalescedTotal.Inc()
	CacheWarmingTotal.Inc()
	CacheWarmingDurationSeconds.Observe(1.2)
}

func TestMetricCityLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Paris", "paris"},
		{"  Paris, France ", "paris"},
		{"Ahmedabad (Gujarat), India", "ahmedabad (gujarat)"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := MetricCityLabel(tt.in); got != tt.want {
			t.Errorf("MetricCityLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestRecordLookup_TrackedAndOther verifies tracked cities get their own series and
// everything else lands in "other".
func TestRecordLookup_TrackedAndOther(t *testing.T) {
	SetTrackedCities([]string{"London", "Tokyo"})
	defer SetTrackedCities(nil)

	beforeLondon := testutil.ToFloat64(LookupsByCityTotal.WithLabelValues("london"))
	beforeOther := testutil.ToFloat64(LookupsByCityTotal.WithLabelValues("other"))

	RecordLookup("London, United Kingdom", "api")
	RecordLookup("Springfield", "api")

	if got := testutil.ToFloat64(LookupsByCityTotal.WithLabelValues("london")) - beforeLondon; got != 1 {
		t.Errorf("london delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(LookupsByCityTotal.WithLabelValues("other")) - beforeOther; got != 1 {
		t.Errorf("other delta = %v, want 1", got)
	}
}

func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}
