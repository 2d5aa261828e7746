package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"
)

var (
	// ErrGeocoderDisabled is returned when no geocoding API key is configured.
	ErrGeocoderDisabled = errors.New("geocoder not configured")
	// ErrPlaceRequired is returned when a place has no usable component.
	ErrPlaceRequired = errors.New("place requires at least a city")
)

// Place is a human readable location that can be turned into a Coordinate.
type Place struct {
	City    string `json:"city" validate:"required"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
}

// Key returns a canonical cache key for the place.
func (p Place) Key() string {
	return strings.ToLower(strings.Join([]string{p.City, p.State, p.Country}, ":"))
}

// Geocoder resolves places via the Google Geocoding API and caches the answers.
type Geocoder struct {
	enabled bool

	mu    sync.RWMutex
	cache map[string]Coordinate
}

// NewGeocoder configures the geocoding client. An empty apiKey yields a
// Geocoder whose Resolve always fails with ErrGeocoderDisabled.
func NewGeocoder(apiKey string) *Geocoder {
	if apiKey != "" {
		geocoder.ApiKey = apiKey
	}
	return &Geocoder{
		enabled: apiKey != "",
		cache:   make(map[string]Coordinate),
	}
}

// Resolve returns the coordinate of a place.
func (g *Geocoder) Resolve(ctx context.Context, p Place) (Coordinate, error) {
	if !g.enabled {
		return Coordinate{}, ErrGeocoderDisabled
	}
	if strings.TrimSpace(p.City) == "" {
		return Coordinate{}, ErrPlaceRequired
	}
	if err := ctx.Err(); err != nil {
		return Coordinate{}, err
	}

	key := p.Key()
	g.mu.RLock()
	c, ok := g.cache[key]
	g.mu.RUnlock()
	if ok {
		return c, nil
	}

	loc, err := geocoder.Geocoding(geocoder.Address{
		City:    p.City,
		State:   p.State,
		Country: p.Country,
	})
	if err != nil {
		return Coordinate{}, fmt.Errorf("geocoding %q: %w", key, err)
	}

	c = Coordinate{Lat: loc.Latitude, Lon: loc.Longitude}
	if err := c.Validate(); err != nil {
		return Coordinate{}, fmt.Errorf("geocoding %q: %w", key, err)
	}

	g.mu.Lock()
	g.cache[key] = c
	g.mu.Unlock()
	return c, nil
}
