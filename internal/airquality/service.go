package airquality

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/i474232898/airquality-idw/internal/common"
	"github.com/i474232898/airquality-idw/internal/geo"
)

var (
	// ErrNotFound is returned by stores when no data matches a query.
	ErrNotFound = errors.New("no air quality data found")
	// ErrNoProvider is returned when collection is requested without a provider.
	ErrNoProvider = errors.New("no air quality provider configured")
)

// RegionConfig describes the area swept during collection.
type RegionConfig struct {
	Name string   `yaml:"name"`
	BBox geo.BBox `yaml:"bbox"`
	// Step is the grid spacing in degrees between search centers.
	Step float64 `yaml:"step"`
	// RadiusM is the search radius around each grid point, in metres.
	RadiusM int `yaml:"radiusMeters"`
	// LocationLimit caps the number of locations returned per search.
	LocationLimit int `yaml:"locationLimit"`
	// Delay is the pause between grid points.
	Delay time.Duration `yaml:"delay"`
}

// DefaultRegion is the Maryland sweep: 0.25 degree grid, 25 km radius, 100
// locations per search and one minute between searches.
func DefaultRegion() RegionConfig {
	return RegionConfig{
		Name:          "maryland",
		BBox:          geo.BBox{South: 37.9, West: -79.5, North: 39.76, East: -74.9},
		Step:          0.25,
		RadiusM:       25000,
		LocationLimit: 100,
		Delay:         60 * time.Second,
	}
}

// CollectionReport summarizes one region sweep.
type CollectionReport struct {
	RunID        string        `json:"runId"`
	Region       string        `json:"region"`
	From         time.Time     `json:"from"`
	To           time.Time     `json:"to"`
	Points       int           `json:"points"`
	FailedPoints int           `json:"failedPoints"`
	Fetched      int           `json:"fetched"`
	Unique       int           `json:"unique"`
	Inserted     int           `json:"inserted"`
	WithWeather  int           `json:"withWeather"`
	Duration     time.Duration `json:"duration"`
}

// Service orchestrates collection from the provider, weather augmentation,
// persistence and prediction.
type Service struct {
	store    Store
	provider Provider
	weather  WeatherLookup
}

// NewService creates a new Service. provider and wx may be nil when the
// service only serves predictions from stored data.
func NewService(store Store, provider Provider, wx WeatherLookup) *Service {
	return &Service{
		store:    store,
		provider: provider,
		weather:  wx,
	}
}

// CollectAround fetches every hourly measurement in [from, to] from the
// sensors of locations within radiusM of center. A sensor that fails is
// logged and skipped; a failed location search is returned as an error. On
// cancellation the measurements gathered so far are returned with ctx.Err().
func (s *Service) CollectAround(ctx context.Context, center geo.Coordinate, radiusM, limit int, from, to time.Time) ([]Measurement, error) {
	if s.provider == nil {
		return nil, ErrNoProvider
	}

	locations, err := s.provider.Locations(ctx, center, radiusM, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching locations near %s: %w", center, err)
	}

	var out []Measurement
	for _, loc := range locations {
		log.Printf("DEBUG: collect: location found: %s (%s)", loc.Name, loc.Coordinate)

		sensors, err := s.provider.Sensors(ctx, loc.ID)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			log.Printf("ERROR: collect: sensors failed for location %d: %v", loc.ID, err)
			continue
		}
		if len(sensors) == 0 {
			log.Printf("DEBUG: collect: no sensors at location %d", loc.ID)
			continue
		}

		for _, sensor := range sensors {
			readings, err := s.provider.Hours(ctx, sensor.ID, from, to)
			if err != nil {
				if ctx.Err() != nil {
					return out, ctx.Err()
				}
				log.Printf("ERROR: collect: measurements failed for sensor %d: %v", sensor.ID, err)
				continue
			}

			for _, r := range readings {
				p := r.Parameter
				if p.Label() == "Unknown" && sensor.Parameter.Label() != "Unknown" {
					p = sensor.Parameter
				}
				out = append(out, Measurement{
					LocationID:   loc.ID,
					LocationName: loc.Name,
					Coordinate:   loc.Coordinate,
					SensorID:     sensor.ID,
					Parameter:    p.Label(),
					Value:        r.Value,
					Unit:         p.Units,
					Time:         r.Time.UTC().Truncate(time.Hour),
				})
			}
		}
	}
	return out, nil
}

// CollectRegion sweeps the region grid, collecting measurements around each
// point. New de-duplicated measurements are persisted after every point, so a
// sweep cut short by ctx keeps what it fetched; the report then counts what
// was stored and the context error is returned. Points that fail are logged
// and skipped. When augment is set and a weather source is configured each
// measurement is merged with its hourly weather before saving.
func (s *Service) CollectRegion(ctx context.Context, region RegionConfig, from, to time.Time, augment bool) (CollectionReport, error) {
	start := time.Now()
	report := CollectionReport{
		RunID:  uuid.NewString(),
		Region: region.Name,
		From:   from,
		To:     to,
	}

	if s.provider == nil {
		return report, ErrNoProvider
	}
	if to.Before(from) {
		return report, fmt.Errorf("collection window ends before it starts: %s > %s", from, to)
	}

	points, err := geo.Grid(region.BBox, region.Step)
	if err != nil {
		return report, err
	}
	report.Points = len(points)

	seen := make(map[string]struct{})
	for i, p := range points {
		log.Printf("DEBUG: collect[%s]: checking for data near %s", report.RunID, p)

		ms, err := s.CollectAround(ctx, p, region.RadiusM, region.LocationLimit, from, to)
		if err != nil && ctx.Err() == nil {
			report.FailedPoints++
			log.Printf("ERROR: collect[%s]: skipping %s due to error: %v", report.RunID, p, err)
		}

		report.Fetched += len(ms)
		var fresh []Measurement
		for _, m := range ms {
			k := m.DedupKey()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			fresh = append(fresh, m)
		}
		report.Unique += len(fresh)

		if saveErr := s.savePoint(ctx, &report, fresh, augment); saveErr != nil {
			return finishReport(report, start), saveErr
		}
		if ctx.Err() != nil {
			return finishReport(report, start), ctx.Err()
		}

		log.Printf("INFO: collect[%s]: %d/%d points complete, %s unique measurements",
			report.RunID, i+1, len(points), humanize.Comma(int64(report.Unique)))

		if i < len(points)-1 {
			if err := common.Sleep(ctx, region.Delay); err != nil {
				return finishReport(report, start), err
			}
		}
	}
	return finishReport(report, start), nil
}

// savePoint augments and stores the new measurements of one grid point. A
// cancelled ctx skips augmentation but still stores the rows.
func (s *Service) savePoint(ctx context.Context, report *CollectionReport, ms []Measurement, augment bool) error {
	if len(ms) == 0 {
		return nil
	}

	if augment && s.weather != nil && ctx.Err() == nil {
		n, err := s.Augment(ctx, ms)
		report.WithWeather += n
		if err != nil && ctx.Err() == nil {
			return err
		}
	}

	inserted, err := s.store.SaveMeasurements(context.WithoutCancel(ctx), ms)
	if err != nil {
		return fmt.Errorf("saving measurements: %w", err)
	}
	report.Inserted += inserted
	return nil
}

func finishReport(report CollectionReport, start time.Time) CollectionReport {
	report.Duration = time.Since(start)
	log.Printf("INFO: collect[%s]: fetched %s, stored %s new measurements in %s",
		report.RunID, humanize.Comma(int64(report.Fetched)), humanize.Comma(int64(report.Inserted)), report.Duration.Round(time.Second))
	return report
}

// Augment merges hourly weather into each measurement in place and returns
// how many received weather. Rows whose lookup fails or has no data keep a
// nil Weather; only context cancellation aborts the pass.
func (s *Service) Augment(ctx context.Context, ms []Measurement) (int, error) {
	if s.weather == nil {
		return 0, nil
	}

	var n int
	for i := range ms {
		obs, ok, err := s.weather.Lookup(ctx, ms[i].Coordinate, ms[i].Time)
		if err != nil {
			if ctx.Err() != nil {
				return n, ctx.Err()
			}
			log.Printf("ERROR: augment: weather lookup failed for %s at %s: %v", ms[i].Coordinate, ms[i].Time.Format(time.RFC3339), err)
			continue
		}
		if !ok {
			continue
		}
		o := obs
		ms[i].Weather = &o
		n++
	}
	return n, nil
}

// Measurements delegates to the underlying store.
func (s *Service) Measurements(ctx context.Context, f Filter) ([]Measurement, error) {
	return s.store.Query(ctx, f)
}

// Locations delegates to the underlying store.
func (s *Service) Locations(ctx context.Context) ([]Location, error) {
	return s.store.Locations(ctx)
}
