package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies lookup failures for the HTTP layer.
type ErrorKind int

const (
	// KindUpstream covers every network, status, or payload failure from any upstream API.
	KindUpstream ErrorKind = iota
	// KindNotFound means geocoding returned no match.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

var (
	// ErrCityNotFound matches any *LookupError of KindNotFound.
	ErrCityNotFound = errors.New("city not found")
	// ErrUpstream matches any *LookupError of KindUpstream.
	ErrUpstream = errors.New("failed to fetch AQI data")
)

// LookupError is returned by Lookup and Refresh. Err holds the operator-facing cause.
type LookupError struct {
	Kind  ErrorKind
	City  string
	Stage string
	Err   error
}

func (e *LookupError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("lookup %q: %s", e.City, e.Kind)
	}
	return fmt.Sprintf("lookup %q: %s: %v", e.City, e.Stage, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrCityNotFound) and errors.Is(err, ErrUpstream) match by kind.
func (e *LookupError) Is(target error) bool {
	switch target {
	case ErrCityNotFound:
		return e.Kind == KindNotFound
	case ErrUpstream:
		return e.Kind == KindUpstream
	}
	return false
}

func notFound(city, query string) error {
	return &LookupError{Kind: KindNotFound, City: city, Stage: "geocoding", Err: fmt.Errorf("no geocoding results for %q", query)}
}

func upstream(city, stage string, err error) error {
	return &LookupError{Kind: KindUpstream, City: city, Stage: stage, Err: err}
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrCityNotFound)
}
