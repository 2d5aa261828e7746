package airquality

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/i474232898/airquality-idw/internal/geo"
	"github.com/i474232898/airquality-idw/internal/idw"
)

// ErrNoSamples is returned when no measurement matches the pollutant and hour.
var ErrNoSamples = errors.New("no samples for pollutant and hour")

// MaxPoints caps the number of points estimated in one batch or grid request.
const MaxPoints = 100000

// PredictRequest asks for a pollutant estimate at a point and hour.
type PredictRequest struct {
	Target    geo.Coordinate
	Pollutant string
	Time      time.Time
	// Sensors limits the estimate to the nearest sensors; 0 uses all of them.
	// Negative values are rejected.
	Sensors int
	Power   float64
}

// Contribution is one sensor's share of a prediction.
type Contribution struct {
	LocationID   int64          `json:"locationId"`
	LocationName string         `json:"locationName"`
	Coordinate   geo.Coordinate `json:"coordinate"`
	Value        float64        `json:"value"`
	DistanceKm   float64        `json:"distanceKm"`
	Weight       float64        `json:"weight"`
}

// Prediction is an IDW estimate together with the inputs that produced it.
type Prediction struct {
	Target        geo.Coordinate `json:"target"`
	Pollutant     string         `json:"pollutant"`
	Time          time.Time      `json:"time"`
	Unit          string         `json:"unit,omitempty"`
	Power         float64        `json:"power"`
	Value         float64        `json:"value"`
	Contributions []Contribution `json:"contributions"`
}

// GridRequest asks for estimates over a regular grid.
type GridRequest struct {
	Pollutant string
	Time      time.Time
	BBox      geo.BBox
	Step      float64
	Sensors   int
	Power     float64
}

// GridCell is the estimate at one grid point; Error is set instead of Value
// when the point could not be estimated.
type GridCell struct {
	Coordinate geo.Coordinate `json:"coordinate"`
	Value      *float64       `json:"value,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Samples returns the IDW samples for one pollutant and hour together with
// the measurements they came from (same order).
func (s *Service) Samples(ctx context.Context, pollutant string, t time.Time) ([]idw.Sample, []Measurement, error) {
	hour := t.UTC().Truncate(time.Hour)
	ms, err := s.store.Query(ctx, Filter{Parameter: pollutant, From: hour, To: hour})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s at %s", ErrNoSamples, pollutant, hour.Format(time.RFC3339))
		}
		return nil, nil, err
	}
	if len(ms) == 0 {
		return nil, nil, fmt.Errorf("%w: %s at %s", ErrNoSamples, pollutant, hour.Format(time.RFC3339))
	}

	ms = commonUnit(ms)
	samples := make([]idw.Sample, len(ms))
	for i, m := range ms {
		samples[i] = idw.Sample{Location: m.Coordinate, Value: m.Value}
	}
	return samples, ms, nil
}

// commonUnit keeps the measurements reported in the most frequent unit, the
// first one seen winning ties. Values in different units are never mixed.
func commonUnit(ms []Measurement) []Measurement {
	counts := make(map[string]int)
	var order []string
	for _, m := range ms {
		if counts[m.Unit] == 0 {
			order = append(order, m.Unit)
		}
		counts[m.Unit]++
	}
	if len(order) == 1 {
		return ms
	}

	unit := order[0]
	for _, u := range order[1:] {
		if counts[u] > counts[unit] {
			unit = u
		}
	}

	kept := make([]Measurement, 0, counts[unit])
	for _, m := range ms {
		if m.Unit == unit {
			kept = append(kept, m)
		}
	}
	log.Printf("DEBUG: samples: dropped %d of %d %s measurements not in %q", len(ms)-len(kept), len(ms), ms[0].Parameter, unit)
	return kept
}

// Predict estimates the pollutant at the target from the nearest sensors
// that reported for the requested hour.
func (s *Service) Predict(ctx context.Context, req PredictRequest) (Prediction, error) {
	if err := req.Target.Validate(); err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", idw.ErrInvalidInput, err)
	}
	if !validPower(req.Power) {
		return Prediction{}, fmt.Errorf("%w: power must be positive, got %v", idw.ErrInvalidInput, req.Power)
	}
	if req.Sensors < 0 {
		return Prediction{}, fmt.Errorf("%w: sensors must not be negative, got %d", idw.ErrInvalidInput, req.Sensors)
	}

	_, ms, err := s.Samples(ctx, req.Pollutant, req.Time)
	if err != nil {
		return Prediction{}, err
	}

	nearest := nearestMeasurements(req.Target, ms, req.Sensors)
	samples := make([]idw.Sample, len(nearest))
	for i, m := range nearest {
		samples[i] = idw.Sample{Location: m.Coordinate, Value: m.Value}
	}

	value, err := idw.Estimate(req.Target, samples, req.Power)
	if err != nil {
		return Prediction{}, err
	}
	weights, err := idw.Weights(req.Target, samples, req.Power)
	if err != nil {
		return Prediction{}, err
	}

	contributions := make([]Contribution, len(nearest))
	for i, m := range nearest {
		contributions[i] = Contribution{
			LocationID:   m.LocationID,
			LocationName: m.LocationName,
			Coordinate:   m.Coordinate,
			Value:        m.Value,
			DistanceKm:   geo.Distance(req.Target, m.Coordinate),
			Weight:       weights[i],
		}
	}

	return Prediction{
		Target:        req.Target,
		Pollutant:     req.Pollutant,
		Time:          req.Time.UTC().Truncate(time.Hour),
		Unit:          nearest[0].Unit,
		Power:         req.Power,
		Value:         value,
		Contributions: contributions,
	}, nil
}

// PredictGrid estimates the pollutant at every point of a grid.
func (s *Service) PredictGrid(ctx context.Context, req GridRequest) ([]GridCell, error) {
	size, err := geo.GridSize(req.BBox, req.Step)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", idw.ErrInvalidInput, err)
	}
	if size > MaxPoints {
		return nil, fmt.Errorf("%w: grid has %.0f points, limit is %d", idw.ErrInvalidInput, size, MaxPoints)
	}
	points, err := geo.Grid(req.BBox, req.Step)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", idw.ErrInvalidInput, err)
	}
	return s.PredictPoints(ctx, req.Pollutant, req.Time, points, req.Sensors, req.Power)
}

// PredictPoints estimates the pollutant at each point from the same hour of
// samples. cells[i] always belongs to points[i].
func (s *Service) PredictPoints(ctx context.Context, pollutant string, t time.Time, points []geo.Coordinate, sensors int, power float64) ([]GridCell, error) {
	if len(points) == 0 || len(points) > MaxPoints {
		return nil, fmt.Errorf("%w: need between 1 and %d points, got %d", idw.ErrInvalidInput, MaxPoints, len(points))
	}
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%w: point %d: %v", idw.ErrInvalidInput, i, err)
		}
	}
	if !validPower(power) {
		return nil, fmt.Errorf("%w: power must be positive, got %v", idw.ErrInvalidInput, power)
	}
	if sensors < 0 {
		return nil, fmt.Errorf("%w: sensors must not be negative, got %d", idw.ErrInvalidInput, sensors)
	}

	samples, _, err := s.Samples(ctx, pollutant, t)
	if err != nil {
		return nil, err
	}

	results := idw.EstimateBatchNearest(points, samples, power, sensors)
	cells := make([]GridCell, len(results))
	for i, r := range results {
		cells[i] = GridCell{Coordinate: r.Query}
		if r.Err != nil {
			cells[i].Error = r.Err.Error()
			continue
		}
		v := r.Value
		cells[i].Value = &v
	}
	return cells, nil
}

func validPower(p float64) bool {
	return p > 0 && !math.IsInf(p, 1)
}

// nearestMeasurements keeps the n measurements closest to target, nearest
// first, with the same ordering rules as idw.Nearest.
func nearestMeasurements(target geo.Coordinate, ms []Measurement, n int) []Measurement {
	dist := make([]float64, len(ms))
	order := make([]int, len(ms))
	for i, m := range ms {
		dist[i] = geo.Distance(target, m.Coordinate)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return dist[order[a]] < dist[order[b]] })

	if n <= 0 || n > len(order) {
		n = len(order)
	}
	out := make([]Measurement, n)
	for i := range out {
		out[i] = ms[order[i]]
	}
	return out
}
