package upstream

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Class groups endpoints that share a cache lifetime.
type Class string

// Endpoint classes.
const (
	ClassLive        Class = "live"
	ClassOdds        Class = "odds"
	ClassFixtures    Class = "fixtures"
	ClassInjuries    Class = "injuries"
	ClassPredictions Class = "predictions"
	ClassStandings   Class = "standings"
	ClassReference   Class = "reference"
	ClassDefault     Class = "default"
)

// CacheKey identifies one upstream resource. Query is canonical (keys sorted).
type CacheKey struct {
	Class Class
	Path  string
	Query string
}

// String renders the key as a relative endpoint.
func (k CacheKey) String() string {
	if k.Query == "" {
		return k.Path
	}
	return k.Path + "?" + k.Query
}

// Values returns the parsed query.
func (k CacheKey) Values() url.Values {
	v, _ := url.ParseQuery(k.Query)
	return v
}

// ParseEndpoint normalizes an endpoint such as "fixtures?live=all" into a key.
func ParseEndpoint(endpoint string) (CacheKey, error) {
	endpoint = strings.TrimLeft(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return CacheKey{}, ErrEmptyEndpoint
	}

	path, rawQuery, _ := strings.Cut(endpoint, "?")
	path = strings.Trim(path, "/")
	if path == "" {
		return CacheKey{}, fmt.Errorf("%w: %q has no path", ErrInvalidEndpoint, endpoint)
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return CacheKey{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}

	return CacheKey{
		Class: classify(path, values),
		Path:  path,
		Query: values.Encode(),
	}, nil
}

func classify(path string, q url.Values) Class {
	if q.Has("live") || strings.HasSuffix(path, "/live") {
		return ClassLive
	}
	root, _, _ := strings.Cut(path, "/")
	switch root {
	case "fixtures":
		return ClassFixtures
	case "odds":
		return ClassOdds
	case "injuries", "sidelined":
		return ClassInjuries
	case "predictions":
		return ClassPredictions
	case "standings":
		return ClassStandings
	case "teams", "leagues", "venues", "countries", "seasons", "timezone":
		return ClassReference
	default:
		return ClassDefault
	}
}

// TTLTable maps endpoint classes to cache lifetimes.
type TTLTable map[Class]time.Duration

// DefaultTTLs returns the stock lifetimes per class.
func DefaultTTLs() TTLTable {
	return TTLTable{
		ClassLive:        30 * time.Second,
		ClassOdds:        5 * time.Minute,
		ClassFixtures:    time.Hour,
		ClassInjuries:    time.Hour,
		ClassPredictions: time.Hour,
		ClassStandings:   6 * time.Hour,
		ClassReference:   24 * time.Hour,
		ClassDefault:     10 * time.Minute,
	}
}

// For returns the lifetime for c, falling back to the default class.
func (t TTLTable) For(c Class) time.Duration {
	if d, ok := t[c]; ok && d > 0 {
		return d
	}
	if d, ok := t[ClassDefault]; ok && d > 0 {
		return d
	}
	return 10 * time.Minute
}
