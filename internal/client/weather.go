package client

import (
	"context"
	"fmt"
	"net/url"
)

// WeatherFetcher returns the current temperature for a coordinate.
type WeatherFetcher interface {
	CurrentTemperature(ctx context.Context, lat, lon float64) (*float64, error)
}

// WeatherClient calls the Open-Meteo forecast API for current conditions.
type WeatherClient struct {
	*openMeteo
}

// NewWeatherClient returns a WeatherClient for apiURL (DefaultWeatherURL when empty).
func NewWeatherClient(apiURL string, opts Options) (*WeatherClient, error) {
	if apiURL == "" {
		apiURL = DefaultWeatherURL
	}
	base, err := newOpenMeteo(apiWeather, apiURL, opts)
	if err != nil {
		return nil, err
	}
	return &WeatherClient{openMeteo: base}, nil
}

type weatherResponse struct {
	Current *struct {
		Temperature2M *float64 `json:"temperature_2m"`
	} `json:"current"`
}

// CurrentTemperature returns temperature_2m in °C. The value is nil when the upstream nulls it.
func (c *WeatherClient) CurrentTemperature(ctx context.Context, lat, lon float64) (*float64, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("current", "temperature_2m")

	var resp weatherResponse
	if err := c.getJSON(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Current == nil {
		return nil, fmt.Errorf("%w: %s: %w: missing current block", ErrUpstreamFailure, c.api, ErrMalformedResponse)
	}
	return resp.Current.Temperature2M, nil
}
