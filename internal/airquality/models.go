package airquality

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/airquality-idw/internal/common"
	"github.com/i474232898/airquality-idw/internal/geo"
	"github.com/i474232898/airquality-idw/internal/weather"
)

// Location is a monitoring site reported by the air-quality provider.
type Location struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Coordinate geo.Coordinate `json:"coordinate"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	if l.ID != 0 {
		return strconv.FormatInt(l.ID, 10)
	}
	return l.Coordinate.String()
}

// Parameter describes what a sensor measures.
type Parameter struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Units       string `json:"units"`
}

// Label is the name measurements are filed under: display name, then name,
// then id, then "Unknown".
func (p Parameter) Label() string {
	id := ""
	if p.ID != 0 {
		id = strconv.FormatInt(p.ID, 10)
	}
	if l := common.FirstNonEmpty(p.DisplayName, p.Name, id); l != "" {
		return l
	}
	return "Unknown"
}

// Sensor is a single instrument at a location.
type Sensor struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Parameter Parameter `json:"parameter"`
}

// Reading is one hourly value as returned by a provider for a sensor.
type Reading struct {
	Parameter Parameter
	Value     float64
	Time      time.Time // start of the hour, UTC
}

// Measurement is a reading placed at its location, optionally merged with
// the weather for the same place and hour.
type Measurement struct {
	LocationID   int64          `json:"locationId"`
	LocationName string         `json:"locationName"`
	Coordinate   geo.Coordinate `json:"coordinate"`
	SensorID     int64          `json:"sensorId,omitempty"`
	Parameter    string         `json:"parameter"`
	Value        float64        `json:"value"`
	Unit         string         `json:"unit"`
	Time         time.Time      `json:"time"` // always UTC, truncated to the hour

	Weather *weather.Observation `json:"weather,omitempty"`
}

// LocationKey returns the key of the location this measurement belongs to.
func (m Measurement) LocationKey() string {
	return Location{ID: m.LocationID, Coordinate: m.Coordinate}.Key()
}

// DedupKey identifies measurements that are the same observation reported
// through overlapping searches.
func (m Measurement) DedupKey() string {
	t := m.Time.UTC()
	return fmt.Sprintf("%s|%s|%s|%s|%s|%04d-%02d-%02dT%02d",
		strconv.FormatFloat(m.Coordinate.Lat, 'g', -1, 64),
		strconv.FormatFloat(m.Coordinate.Lon, 'g', -1, 64),
		strings.ToLower(m.Parameter),
		strconv.FormatFloat(m.Value, 'g', -1, 64),
		m.Unit,
		t.Year(), t.Month(), t.Day(), t.Hour(),
	)
}

// Filter selects measurements from a Store. Zero fields match everything;
// From and To are inclusive.
type Filter struct {
	Parameter   string
	LocationKey string
	From        time.Time
	To          time.Time
}

// Match reports whether m satisfies the filter.
func (f Filter) Match(m Measurement) bool {
	if f.Parameter != "" && !strings.EqualFold(f.Parameter, m.Parameter) {
		return false
	}
	if f.LocationKey != "" && f.LocationKey != m.LocationKey() {
		return false
	}
	if !f.From.IsZero() && m.Time.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && m.Time.After(f.To) {
		return false
	}
	return true
}
