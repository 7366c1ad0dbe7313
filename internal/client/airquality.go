package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kjstillabower/air-quality-service/internal/models"
)

const airQualityFields = "us_aqi,pm10,pm2_5,ozone,nitrogen_dioxide,carbon_monoxide"

// AirQualityFetcher returns current air quality for a coordinate.
type AirQualityFetcher interface {
	Current(ctx context.Context, lat, lon float64) (models.AirQuality, error)
}

// AirQualityClient calls the Open-Meteo air-quality API.
type AirQualityClient struct {
	*openMeteo
}

// NewAirQualityClient returns an AirQualityClient for apiURL (DefaultAirQualityURL when empty).
func NewAirQualityClient(apiURL string, opts Options) (*AirQualityClient, error) {
	if apiURL == "" {
		apiURL = DefaultAirQualityURL
	}
	base, err := newOpenMeteo(apiAirQuality, apiURL, opts)
	if err != nil {
		return nil, err
	}
	return &AirQualityClient{openMeteo: base}, nil
}

type airQualityResponse struct {
	Current *struct {
		USAQI           *float64 `json:"us_aqi"`
		PM10            *float64 `json:"pm10"`
		PM25            *float64 `json:"pm2_5"`
		Ozone           *float64 `json:"ozone"`
		NitrogenDioxide *float64 `json:"nitrogen_dioxide"`
		CarbonMonoxide  *float64 `json:"carbon_monoxide"`
	} `json:"current"`
}

// Current fetches the current US AQI and pollutant concentrations. Individual values may be
// nil; a response without a "current" block is malformed.
func (c *AirQualityClient) Current(ctx context.Context, lat, lon float64) (models.AirQuality, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("current", airQualityFields)

	var resp airQualityResponse
	if err := c.getJSON(ctx, params, &resp); err != nil {
		return models.AirQuality{}, err
	}
	if resp.Current == nil {
		return models.AirQuality{}, fmt.Errorf("%w: %s: %w: missing current block", ErrUpstreamFailure, c.api, ErrMalformedResponse)
	}

	cur := resp.Current
	return models.AirQuality{
		USAQI:           cur.USAQI,
		PM10:            cur.PM10,
		PM25:            cur.PM25,
		Ozone:           cur.Ozone,
		NitrogenDioxide: cur.NitrogenDioxide,
		CarbonMonoxide:  cur.CarbonMonoxide,
	}, nil
}
