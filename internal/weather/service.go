package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/i474232898/airquality-idw/internal/geo"
)

// ErrNoProvider is returned when the service has nothing to fetch from.
var ErrNoProvider = errors.New("no weather provider configured")

// Service answers per-hour weather lookups, fetching whole days from the
// provider and caching them by rounded coordinate and date.
type Service struct {
	provider Provider

	mu    sync.Mutex
	days  map[dayKey]map[time.Time]Observation
	fetch map[dayKey]*sync.WaitGroup
}

type dayKey struct {
	lat, lon int64 // hundredths of a degree
	date     string
}

// NewService creates a new Service.
func NewService(provider Provider) *Service {
	return &Service{
		provider: provider,
		days:     make(map[dayKey]map[time.Time]Observation),
		fetch:    make(map[dayKey]*sync.WaitGroup),
	}
}

func keyFor(coord geo.Coordinate, t time.Time) dayKey {
	return dayKey{
		lat:  int64(math.Round(coord.Lat * 100)),
		lon:  int64(math.Round(coord.Lon * 100)),
		date: t.UTC().Format("2006-01-02"),
	}
}

// Lookup returns the observation for the hour containing t at coord. The
// boolean is false when the provider has no data for that hour.
func (s *Service) Lookup(ctx context.Context, coord geo.Coordinate, t time.Time) (Observation, bool, error) {
	if s.provider == nil {
		return Observation{}, false, ErrNoProvider
	}

	hour := Hour(t)
	key := keyFor(coord, hour)

	for {
		s.mu.Lock()
		if day, ok := s.days[key]; ok {
			s.mu.Unlock()
			obs, found := day[hour]
			return obs, found, nil
		}
		if wg, ok := s.fetch[key]; ok {
			// Another caller is fetching this day; wait and re-check the cache.
			s.mu.Unlock()
			wg.Wait()
			if err := ctx.Err(); err != nil {
				return Observation{}, false, err
			}
			continue
		}
		wg := &sync.WaitGroup{}
		wg.Add(1)
		s.fetch[key] = wg
		s.mu.Unlock()

		day, err := s.fetchDay(ctx, coord, hour)

		s.mu.Lock()
		delete(s.fetch, key)
		if err == nil {
			s.days[key] = day
		}
		s.mu.Unlock()
		wg.Done()

		if err != nil {
			return Observation{}, false, err
		}
		obs, found := day[hour]
		return obs, found, nil
	}
}

func (s *Service) fetchDay(ctx context.Context, coord geo.Coordinate, hour time.Time) (map[time.Time]Observation, error) {
	observations, err := s.provider.Hourly(ctx, coord, hour)
	if err != nil {
		log.Printf("ERROR: weather: provider %s failed for %s on %s: %v", s.provider.Name(), coord, hour.Format("2006-01-02"), err)
		return nil, fmt.Errorf("fetching weather from %s: %w", s.provider.Name(), err)
	}

	day := make(map[time.Time]Observation, len(observations))
	for _, o := range observations {
		o.Time = Hour(o.Time)
		day[o.Time] = o
	}
	return day, nil
}
