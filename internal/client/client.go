package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/air-quality-service/internal/observability"
)

// Default Open-Meteo endpoints.
const (
	DefaultGeocodingURL  = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"
	DefaultWeatherURL    = "https://api.open-meteo.com/v1/forecast"
)

// API labels used in metrics and logs.
const (
	apiGeocoding  = "geocoding"
	apiAirQuality = "air_quality"
	apiWeather    = "weather"
)

var (
	// ErrUpstreamFailure wraps every network, status, or payload failure from an upstream API.
	ErrUpstreamFailure = errors.New("upstream failure")
	// ErrMalformedResponse is returned (wrapped in ErrUpstreamFailure) when a 2xx body cannot be decoded
	// or lacks the expected fields.
	ErrMalformedResponse = errors.New("malformed response")
)

// Options configures the HTTP transport shared by the Open-Meteo clients.
type Options struct {
	Timeout time.Duration
	// Limiter throttles outbound calls. Nil disables throttling. Calls wait for a
	// token rather than failing.
	Limiter *rate.Limiter
}

// openMeteo is the request/response plumbing shared by the three API clients.
type openMeteo struct {
	api     string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func newOpenMeteo(api, baseURL string, opts Options) (*openMeteo, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid API URL: %w", api, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s: invalid API URL %q", api, baseURL)
	}
	return &openMeteo{
		api:     api,
		baseURL: baseURL,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: opts.Limiter,
	}, nil
}

// getJSON issues GET baseURL?params and decodes a 2xx JSON body into out.
func (c *openMeteo) getJSON(ctx context.Context, params url.Values, out interface{}) error {
	if err := c.wait(ctx); err != nil {
		return fmt.Errorf("%w: %s throttle: %v", ErrUpstreamFailure, c.api, err)
	}

	start := time.Now()
	req, err := c.buildRequest(ctx, params)
	if err != nil {
		observability.UpstreamAPICallsTotal.WithLabelValues(c.api, "error").Inc()
		return fmt.Errorf("%w: %s build request: %v", ErrUpstreamFailure, c.api, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.UpstreamAPICallsTotal.WithLabelValues(c.api, "error").Inc()
		observability.UpstreamAPIDuration.WithLabelValues(c.api, "error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("%w: %s http request failed: %w", ErrUpstreamFailure, c.api, err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.UpstreamAPICallsTotal.WithLabelValues(c.api, status).Inc()
	observability.UpstreamAPIDuration.WithLabelValues(c.api, status).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s read response body: %w", ErrUpstreamFailure, c.api, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.LoggerFromContext(ctx).Debug("upstream error response",
			zap.String("api", c.api),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(body, 512)))
		return fmt.Errorf("%w: %s HTTP %d", ErrUpstreamFailure, c.api, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %s parse response: %w", ErrUpstreamFailure, c.api, errors.Join(ErrMalformedResponse, err))
	}
	return nil
}

func (c *openMeteo) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	start := time.Now()
	err := c.limiter.Wait(ctx)
	observability.UpstreamThrottleWaitSeconds.Observe(time.Since(start).Seconds())
	return err
}

func (c *openMeteo) buildRequest(ctx context.Context, params url.Values) (*http.Request, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	return req, nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
