package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/air-quality-service/internal/client"
	"github.com/kjstillabower/air-quality-service/internal/models"
	"github.com/kjstillabower/air-quality-service/internal/observability"
	"github.com/kjstillabower/air-quality-service/internal/validation"
)

// Suggestion list bounds.
const (
	DefaultSuggestCount = 15
	MaxSuggestCount     = 25
)

// DefaultPopularCities is shown when the search box is empty and used as the cache warming list.
var DefaultPopularCities = []string{
	"London, United Kingdom",
	"New York, United States",
	"Tokyo, Japan",
	"Paris, France",
	"Dubai, UAE",
	"Singapore, Singapore",
	"Mumbai, India",
	"Sydney, Australia",
	"Berlin, Germany",
	"Toronto, Canada",
}

// Suggester returns city-name completions for the search box.
type Suggester struct {
	geocoder client.Geocoder
	popular  []models.CitySuggestion
}

// NewSuggester returns a Suggester. popular entries are "Name, Country" strings; nil uses
// DefaultPopularCities.
func NewSuggester(geocoder client.Geocoder, popular []string) *Suggester {
	if popular == nil {
		popular = DefaultPopularCities
	}
	list := make([]models.CitySuggestion, 0, len(popular))
	for _, p := range popular {
		name, country, _ := strings.Cut(p, ",")
		name, country = strings.TrimSpace(name), strings.TrimSpace(country)
		if name == "" {
			continue
		}
		if country == "" {
			country = "Unknown"
		}
		list = append(list, models.CitySuggestion{
			Name:     name,
			Country:  country,
			FullName: fmt.Sprintf("%s, %s", name, country),
		})
	}
	return &Suggester{geocoder: geocoder, popular: list}
}

// Popular returns a copy of the popular city list.
func (s *Suggester) Popular() []models.CitySuggestion {
	out := make([]models.CitySuggestion, len(s.popular))
	copy(out, s.popular)
	return out
}

// Suggest returns up to count geocoding matches for term. A blank term returns the popular list.
// When geocoding fails, the popular cities containing term are returned together with the error
// so the caller can still render something.
func (s *Suggester) Suggest(ctx context.Context, term string, count int) ([]models.CitySuggestion, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.Popular(), nil
	}
	count = validation.ClampCount(count, DefaultSuggestCount, MaxSuggestCount)

	locations, err := s.geocoder.Search(ctx, term, count)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("city suggestions failed, using popular cities",
			zap.String("term", term), zap.Error(err))
		return s.filterPopular(term), fmt.Errorf("suggest %q: %w", term, err)
	}

	out := make([]models.CitySuggestion, 0, len(locations))
	for _, loc := range locations {
		out = append(out, toSuggestion(loc))
	}
	return out, nil
}

func (s *Suggester) filterPopular(term string) []models.CitySuggestion {
	needle := strings.ToLower(term)
	out := []models.CitySuggestion{}
	for _, p := range s.popular {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			out = append(out, p)
		}
	}
	return out
}

// toSuggestion builds the dropdown entry. admin1 is included in FullName only when it adds
// information beyond the city name.
func toSuggestion(loc models.GeoLocation) models.CitySuggestion {
	country := loc.Country
	if country == "" {
		country = "Unknown"
	}
	full := loc.Name
	if loc.Admin1 != "" && loc.Admin1 != loc.Name {
		full += ", " + loc.Admin1
	}
	full += ", " + country
	return models.CitySuggestion{
		Name:        loc.Name,
		Country:     country,
		CountryCode: loc.CountryCode,
		Admin1:      loc.Admin1,
		Latitude:    loc.Latitude,
		Longitude:   loc.Longitude,
		FullName:    full,
	}
}
