package models

import "time"

// TimestampLayout is the ISO-8601 layout used for AqiReading.Time.S (UTC, millisecond precision).
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Reading sources reported in AqiReading.Source.
const (
	SourceAPI   = "api"
	SourceCache = "cache"
)

// GeoLocation is a single geocoding match.
type GeoLocation struct {
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode,omitempty"`
	Admin1      string  `json:"admin1,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// AirQuality holds current pollutant concentrations and the US AQI. Nil means the
// upstream omitted or nulled the value.
type AirQuality struct {
	USAQI           *float64
	PM10            *float64
	PM25            *float64
	Ozone           *float64
	NitrogenDioxide *float64
	CarbonMonoxide  *float64
}

// AqiReading is the unified lookup result returned to the UI and stored in the cache.
// Source is empty while cached and set at read time.
type AqiReading struct {
	AQI    *int      `json:"aqi"`
	City   CityLabel `json:"city"`
	IAQI   IAQI      `json:"iaqi"`
	Time   ReadingAt `json:"time"`
	Source string    `json:"source,omitempty"`
}

// CityLabel is the display name, formatted "{name}, {country}".
type CityLabel struct {
	Name string `json:"name"`
}

// IAQI is the per-pollutant value map. T is the temperature in °C.
type IAQI struct {
	PM25 Value `json:"pm25"`
	PM10 Value `json:"pm10"`
	O3   Value `json:"o3"`
	NO2  Value `json:"no2"`
	CO   Value `json:"co"`
	T    Value `json:"t"`
}

// Value wraps a nullable measurement; V encodes as JSON null when absent.
type Value struct {
	V *float64 `json:"v"`
}

// ReadingAt carries the fetch timestamp.
type ReadingAt struct {
	S string `json:"s"`
}

// NewReadingAt formats t in UTC using TimestampLayout.
func NewReadingAt(t time.Time) ReadingAt {
	return ReadingAt{S: t.UTC().Format(TimestampLayout)}
}

// WithSource returns a copy of r tagged with source.
func (r AqiReading) WithSource(source string) AqiReading {
	r.Source = source
	return r
}

// CitySuggestion is one entry in the city search dropdown.
type CitySuggestion struct {
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode,omitempty"`
	Admin1      string  `json:"admin1,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
	FullName    string  `json:"fullName"`
}
