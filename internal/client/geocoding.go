package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/kjstillabower/air-quality-service/internal/models"
)

// Geocoder resolves a free-text place name to candidate locations.
type Geocoder interface {
	Search(ctx context.Context, name string, count int) ([]models.GeoLocation, error)
}

// GeocodingClient calls the Open-Meteo geocoding search API.
type GeocodingClient struct {
	*openMeteo
}

// NewGeocodingClient returns a GeocodingClient for apiURL (DefaultGeocodingURL when empty).
func NewGeocodingClient(apiURL string, opts Options) (*GeocodingClient, error) {
	if apiURL == "" {
		apiURL = DefaultGeocodingURL
	}
	base, err := newOpenMeteo(apiGeocoding, apiURL, opts)
	if err != nil {
		return nil, err
	}
	return &GeocodingClient{openMeteo: base}, nil
}

// geocodingResponse mirrors the search payload. The API omits "results" entirely when
// nothing matches.
type geocodingResponse struct {
	Results []struct {
		Name        string  `json:"name"`
		Country     string  `json:"country"`
		CountryCode string  `json:"country_code"`
		Admin1      string  `json:"admin1"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
	} `json:"results"`
}

// Search returns up to count matches for name. No matches is an empty slice and a nil error.
func (c *GeocodingClient) Search(ctx context.Context, name string, count int) ([]models.GeoLocation, error) {
	params := url.Values{}
	params.Set("name", name)
	params.Set("count", strconv.Itoa(count))
	params.Set("language", "en")
	params.Set("format", "json")

	var resp geocodingResponse
	if err := c.getJSON(ctx, params, &resp); err != nil {
		return nil, err
	}

	out := make([]models.GeoLocation, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, models.GeoLocation{
			Name:        r.Name,
			Country:     r.Country,
			CountryCode: r.CountryCode,
			Admin1:      r.Admin1,
			Latitude:    r.Latitude,
			Longitude:   r.Longitude,
		})
	}
	return out, nil
}
