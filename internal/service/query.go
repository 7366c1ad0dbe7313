package service

import "strings"

// NormalizeCity returns the cache key for raw input: lower-cased and trimmed.
// Punctuation is kept, so "Paris" and "Paris, France" are distinct keys.
func NormalizeCity(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// GeocodingQuery strips admin-region and country suffixes from input by cutting at the
// first comma, then at the first opening parenthesis.
//
//	"Ahmedabad, Gujarat, India"  -> "Ahmedabad"
//	"Ahmedabad (Gujarat), India" -> "Ahmedabad"
func GeocodingQuery(input string) string {
	name, _, _ := strings.Cut(input, ",")
	name, _, _ = strings.Cut(name, "(")
	return strings.TrimSpace(name)
}
