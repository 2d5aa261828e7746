package airquality

import (
	"context"
	"time"

	"github.com/i474232898/airquality-idw/internal/geo"
	"github.com/i474232898/airquality-idw/internal/weather"
)

// Provider abstracts an air-quality data source (e.g. OpenAQ).
type Provider interface {
	Name() string
	// Locations returns monitoring sites within radiusM metres of center.
	Locations(ctx context.Context, center geo.Coordinate, radiusM, limit int) ([]Location, error)
	// Sensors returns the instruments installed at a location.
	Sensors(ctx context.Context, locationID int64) ([]Sensor, error)
	// Hours returns every hourly reading of a sensor in [from, to].
	Hours(ctx context.Context, sensorID int64, from, to time.Time) ([]Reading, error)
}

// Store is the contract the in-memory and SQLite stores must satisfy.
type Store interface {
	// SaveMeasurements persists measurements, skipping ones whose DedupKey is
	// already stored, and returns how many were inserted.
	SaveMeasurements(ctx context.Context, ms []Measurement) (int, error)
	Query(ctx context.Context, f Filter) ([]Measurement, error)
	Locations(ctx context.Context) ([]Location, error)
}

// WeatherLookup returns the weather for a place and hour.
type WeatherLookup interface {
	Lookup(ctx context.Context, coord geo.Coordinate, t time.Time) (weather.Observation, bool, error)
}
