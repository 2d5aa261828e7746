package weather

import (
	"context"
	"time"

	"github.com/i474232898/airquality-idw/internal/geo"
)

// Provider abstracts an hourly weather history source (e.g. Open-Meteo archive).
type Provider interface {
	Name() string
	// Hourly returns the observations for the UTC calendar day containing day.
	Hourly(ctx context.Context, coord geo.Coordinate, day time.Time) ([]Observation, error)
}
