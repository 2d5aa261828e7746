package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0088

var (
	// ErrInvalidCoordinate is returned for coordinates outside the decimal-degree range.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrInvalidGrid is returned when a bounding box or grid step cannot produce points.
	ErrInvalidGrid = errors.New("invalid grid")
)

// Coordinate is a decimal-degree latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Validate reports whether the coordinate is finite and inside [-90,90] x [-180,180].
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinate, c.Lat)
	}
	if math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, c.Lon)
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// Distance returns the great-circle distance between a and b in kilometres
// (haversine on a spherical Earth). Identical coordinates give exactly 0.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// BBox is a latitude/longitude bounding box.
type BBox struct {
	South float64 `json:"south" yaml:"south"`
	West  float64 `json:"west" yaml:"west"`
	North float64 `json:"north" yaml:"north"`
	East  float64 `json:"east" yaml:"east"`
}

// Contains reports whether c lies inside the box (edges included).
func (b BBox) Contains(c Coordinate) bool {
	return c.Lat >= b.South && c.Lat <= b.North && c.Lon >= b.West && c.Lon <= b.East
}

// Validate checks that both corners are valid coordinates and the box is not inverted.
func (b BBox) Validate() error {
	if err := (Coordinate{Lat: b.South, Lon: b.West}).Validate(); err != nil {
		return err
	}
	if err := (Coordinate{Lat: b.North, Lon: b.East}).Validate(); err != nil {
		return err
	}
	if b.South >= b.North || b.West >= b.East {
		return fmt.Errorf("%w: empty bounding box %+v", ErrInvalidGrid, b)
	}
	return nil
}

// MaxGridPoints bounds the number of points Grid will materialise.
const MaxGridPoints = 10_000_000

// GridSize returns an upper bound on the number of points Grid(b, step)
// produces, computed without allocating them.
func GridSize(b BBox, step float64) (float64, error) {
	if err := b.Validate(); err != nil {
		return 0, err
	}
	if math.IsNaN(step) || math.IsInf(step, 0) || step <= 0 {
		return 0, fmt.Errorf("%w: step %v", ErrInvalidGrid, step)
	}
	return math.Ceil((b.North-b.South)/step) * math.Ceil((b.East-b.West)/step), nil
}

// Grid returns the points South+i*step, West+j*step that lie strictly below
// North and East, ordered south to north and then west to east.
func Grid(b BBox, step float64) ([]Coordinate, error) {
	size, err := GridSize(b, step)
	if err != nil {
		return nil, err
	}
	if size > MaxGridPoints {
		return nil, fmt.Errorf("%w: step %v gives %.0f points, limit is %d", ErrInvalidGrid, step, size, MaxGridPoints)
	}

	// Points are derived from the index, never accumulated.
	nLat := int(math.Ceil((b.North - b.South) / step))
	nLon := int(math.Ceil((b.East - b.West) / step))

	points := make([]Coordinate, 0, nLat*nLon)
	for i := 0; i < nLat; i++ {
		lat := b.South + float64(i)*step
		if lat >= b.North {
			break
		}
		for j := 0; j < nLon; j++ {
			lon := b.West + float64(j)*step
			if lon >= b.East {
				break
			}
			points = append(points, Coordinate{Lat: lat, Lon: lon})
		}
	}
	return points, nil
}
