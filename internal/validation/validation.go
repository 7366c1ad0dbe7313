package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrCityRequired is returned when the city is missing or whitespace-only.
var ErrCityRequired = errors.New("city is required")

// ErrCityTooLong is returned when the trimmed city exceeds the configured maximum.
var ErrCityTooLong = errors.New("city is too long")

// ErrCityInvalidChars is returned when the city contains control characters.
var ErrCityInvalidChars = errors.New("city contains invalid characters")

// ValidateCity trims the input, enforces maxLen (in runes, 0 disables) and rejects control
// characters. Punctuation such as commas, parentheses, apostrophes and dots is allowed because
// search-box entries look like "Ahmedabad (Gujarat), India" or "St. John's".
// Returns the trimmed string; normalization is left to the service layer.
func ValidateCity(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	if len(r) == 0 {
		return "", ErrCityRequired
	}
	if maxLen > 0 && len(r) > maxLen {
		return "", ErrCityTooLong
	}
	for _, c := range r {
		if unicode.IsControl(c) {
			return "", ErrCityInvalidChars
		}
	}
	return s, nil
}

// ClampCount returns n bounded to [1, max], using def when n is not positive.
func ClampCount(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
