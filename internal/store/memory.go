package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/airquality-idw/internal/airquality"
)

var (
	// ErrNotFound is returned when no data is available for a query.
	ErrNotFound = airquality.ErrNotFound
)

// MeasurementHistory holds a time-ordered list of measurements for a location.
type MeasurementHistory struct {
	Location     airquality.Location
	Measurements []airquality.Measurement
}

// MemoryStore is a concurrency-safe in-memory implementation of airquality.Store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location key, value: history
	data map[string]*MeasurementHistory
	seen map[string]struct{}

	// optional max age for measurements, relative to the newest stored hour
	maxAge time.Duration
}

// NewMemoryStore creates a new MemoryStore. If maxAge is <= 0, measurements
// are kept forever.
func NewMemoryStore(maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:   make(map[string]*MeasurementHistory),
		seen:   make(map[string]struct{}),
		maxAge: maxAge,
	}
}

// SaveMeasurements appends new measurements per location, keeps each history
// ordered by time and enforces retention.
func (s *MemoryStore) SaveMeasurements(_ context.Context, ms []airquality.Measurement) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[string]*MeasurementHistory)
	inserted := 0
	for _, m := range ms {
		k := m.DedupKey()
		if _, dup := s.seen[k]; dup {
			continue
		}
		s.seen[k] = struct{}{}

		m.Time = m.Time.UTC()
		key := m.LocationKey()
		history, ok := s.data[key]
		if !ok {
			history = &MeasurementHistory{Location: airquality.Location{
				ID:         m.LocationID,
				Name:       m.LocationName,
				Coordinate: m.Coordinate,
			}}
			s.data[key] = history
		}
		history.Measurements = append(history.Measurements, m)
		touched[key] = history
		inserted++
	}

	for _, history := range touched {
		sort.SliceStable(history.Measurements, func(i, j int) bool {
			return history.Measurements[i].Time.Before(history.Measurements[j].Time)
		})
	}

	if s.maxAge > 0 {
		s.enforceMaxAge()
	}
	return inserted, nil
}

// enforceMaxAge drops measurements more than maxAge older than the newest
// stored hour (not the wall clock).
func (s *MemoryStore) enforceMaxAge() {
	var newest time.Time
	for _, h := range s.data {
		if n := len(h.Measurements); n > 0 && h.Measurements[n-1].Time.After(newest) {
			newest = h.Measurements[n-1].Time
		}
	}
	cutoff := newest.Add(-s.maxAge)

	for key, h := range s.data {
		i := 0
		for ; i < len(h.Measurements); i++ {
			if !h.Measurements[i].Time.Before(cutoff) {
				break
			}
			delete(s.seen, h.Measurements[i].DedupKey())
		}
		if i == 0 {
			continue
		}
		h.Measurements = h.Measurements[i:]
		if len(h.Measurements) == 0 {
			delete(s.data, key)
		}
	}
}

// Query returns measurements matching f ordered by time, location key and parameter.
func (s *MemoryStore) Query(_ context.Context, f airquality.Filter) ([]airquality.Measurement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []airquality.Measurement
	collect := func(h *MeasurementHistory) {
		for _, m := range h.Measurements {
			if f.Match(m) {
				result = append(result, m)
			}
		}
	}

	if f.LocationKey != "" {
		h, ok := s.data[f.LocationKey]
		if !ok {
			return nil, ErrNotFound
		}
		collect(h)
	} else {
		for _, h := range s.data {
			collect(h)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Time.Equal(result[j].Time) {
			return result[i].Time.Before(result[j].Time)
		}
		if ki, kj := result[i].LocationKey(), result[j].LocationKey(); ki != kj {
			return ki < kj
		}
		return result[i].Parameter < result[j].Parameter
	})
	return result, nil
}

// Locations returns every location with stored measurements, ordered by key.
func (s *MemoryStore) Locations(_ context.Context) ([]airquality.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]airquality.Location, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.data[k].Location)
	}
	return out, nil
}
