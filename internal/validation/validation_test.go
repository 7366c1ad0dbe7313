package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateCity_EmptyAndWhitespace(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"spaces", "   "},
		{"tab", "\t"},
		{"newline", "\n "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateCity(tc.input, 200)
			if !errors.Is(err, ErrCityRequired) {
				t.Errorf("error = %v, want ErrCityRequired", err)
			}
		})
	}
}

func TestValidateCity_TooLong(t *testing.T) {
	_, err := ValidateCity(strings.Repeat("a", 201), 200)
	if !errors.Is(err, ErrCityTooLong) {
		t.Errorf("error = %v, want ErrCityTooLong", err)
	}

	// Length is counted in runes, not bytes.
	if _, err := ValidateCity(strings.Repeat("é", 200), 200); err != nil {
		t.Errorf("200 runes: error = %v, want nil", err)
	}

	if _, err := ValidateCity(strings.Repeat("a", 1000), 0); err != nil {
		t.Errorf("maxLen 0 should disable the bound: %v", err)
	}
}

func TestValidateCity_InvalidChars(t *testing.T) {
	for _, in := range []string{"Lon\x00don", "Par\x1bis"} {
		if _, err := ValidateCity(in, 200); !errors.Is(err, ErrCityInvalidChars) {
			t.Errorf("ValidateCity(%q) error = %v, want ErrCityInvalidChars", in, err)
		}
	}
}

func TestValidateCity_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"London", "London"},
		{"  Paris  ", "Paris"},
		{"Ahmedabad (Gujarat), India", "Ahmedabad (Gujarat), India"},
		{"St. John's", "St. John's"},
		{"São Paulo", "São Paulo"},
		{"東京", "東京"},
	}
	for _, tc := range tests {
		got, err := ValidateCity(tc.input, 200)
		if err != nil {
			t.Errorf("ValidateCity(%q) error = %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ValidateCity(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestClampCount(t *testing.T) {
	tests := []struct {
		n, want int
	}{
		{0, 15},
		{-1, 15},
		{5, 5},
		{25, 25},
		{26, 25},
	}
	for _, tc := range tests {
		if got := ClampCount(tc.n, 15, 25); got != tc.want {
			t.Errorf("ClampCount(%d) = %d, want %d", tc.n, got, tc.want)
		}
	}
}

func TestValidationErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrCityRequired, "city is required"},
		{ErrCityTooLong, "city is too long"},
		{ErrCityInvalidChars, "city contains invalid characters"},
	}
	for _, tc := range tests {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
	}
}
