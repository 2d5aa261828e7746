package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-co-op/gocron"

	"github.com/i474232898/airquality-idw/internal/airquality"
	"github.com/i474232898/airquality-idw/internal/geo"
)

// Collector runs one region sweep. *airquality.Service satisfies it.
type Collector interface {
	CollectRegion(ctx context.Context, region airquality.RegionConfig, from, to time.Time, augment bool) (airquality.CollectionReport, error)
}

// Scheduler periodically collects the configured region.
type Scheduler struct {
	scheduler *gocron.Scheduler
	collector Collector
	region    airquality.RegionConfig
	interval  time.Duration
	lookback  time.Duration
	augment   bool

	// ctx bounds every run; Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

// New creates a new Scheduler. Each run collects [now-lookback, now].
func New(collector Collector, region airquality.RegionConfig, interval, lookback time.Duration, augment bool) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		collector: collector,
		region:    region,
		interval:  interval,
		lookback:  lookback,
		augment:   augment,
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run starts immediately; a run still in progress is never overlapped,
// and runs are not cut off when they outlast the interval.
func (s *Scheduler) Start() error {
	if s.collector == nil {
		log.Println("INFO: scheduler: no collector configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	if points, err := geo.GridSize(s.region.BBox, s.region.Step); err == nil {
		if sweep := time.Duration(points) * s.region.Delay; sweep > time.Duration(minutes)*time.Minute {
			log.Printf("INFO: scheduler: a sweep of %s takes at least %s, longer than the %dm interval; overlapping runs are skipped",
				s.region.Name, sweep, minutes)
		}
	}

	_, err := s.scheduler.Every(minutes).Minutes().SingletonMode().Do(func() {
		s.RunOnce(s.ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce collects the lookback window ending now.
func (s *Scheduler) RunOnce(ctx context.Context) (airquality.CollectionReport, error) {
	to := s.now().UTC().Truncate(time.Hour)
	from := to.Add(-s.lookback)

	log.Printf("INFO: scheduler: running %s collection for %s .. %s", s.region.Name, from.Format(time.RFC3339), to.Format(time.RFC3339))
	report, err := s.collector.CollectRegion(ctx, s.region, from, to, s.augment)
	if err != nil {
		log.Printf("ERROR: scheduler: collection failed: %v", err)
		return report, err
	}

	log.Printf("INFO: scheduler: completed collection %s: %s new measurements, %d/%d points failed",
		report.RunID, humanize.Comma(int64(report.Inserted)), report.FailedPoints, report.Points)
	return report, nil
}

// Stop cancels a run in progress, stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
