package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/i474232898/airquality-idw/internal/airquality"
)

type call struct {
	region   string
	from, to time.Time
	augment  bool
}

type fakeCollector struct {
	mu    sync.Mutex
	calls []call
	done  chan struct{}
	err   error
}

func (f *fakeCollector) CollectRegion(_ context.Context, region airquality.RegionConfig, from, to time.Time, augment bool) (airquality.CollectionReport, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{region: region.Name, from: from, to: to, augment: augment})
	f.mu.Unlock()
	if f.done != nil {
		select {
		case f.done <- struct{}{}:
		default:
		}
	}
	return airquality.CollectionReport{RunID: "run", Inserted: 1200}, f.err
}

func TestRunOnceUsesLookbackWindow(t *testing.T) {
	fc := &fakeCollector{}
	s := New(fc, airquality.RegionConfig{Name: "test"}, time.Hour, 3*time.Hour, true)
	s.now = func() time.Time { return time.Date(2020, 1, 1, 12, 34, 0, 0, time.UTC) }

	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fc.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(fc.calls))
	}
	c := fc.calls[0]
	wantTo := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	if !c.to.Equal(wantTo) || !c.from.Equal(wantTo.Add(-3*time.Hour)) {
		t.Fatalf("unexpected window %v .. %v", c.from, c.to)
	}
	if c.region != "test" || !c.augment {
		t.Fatalf("unexpected call %+v", c)
	}
}

func TestRunOnceReturnsCollectorError(t *testing.T) {
	fc := &fakeCollector{err: errors.New("boom")}
	s := New(fc, airquality.RegionConfig{}, time.Hour, time.Hour, false)

	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStartRunsImmediately(t *testing.T) {
	fc := &fakeCollector{done: make(chan struct{}, 1)}
	s := New(fc, airquality.RegionConfig{Name: "test"}, time.Hour, time.Hour, false)

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()

	select {
	case <-fc.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected the first collection to start immediately")
	}
}

func TestStartWithoutCollector(t *testing.T) {
	s := New(nil, airquality.RegionConfig{}, time.Hour, time.Hour, false)
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()
}

type blockingCollector struct {
	started  chan bool
	finished chan error
}

func (b *blockingCollector) CollectRegion(ctx context.Context, _ airquality.RegionConfig, _, _ time.Time, _ bool) (airquality.CollectionReport, error) {
	_, hasDeadline := ctx.Deadline()
	b.started <- hasDeadline
	<-ctx.Done()
	b.finished <- ctx.Err()
	return airquality.CollectionReport{}, ctx.Err()
}

func TestStopCancelsRunningCollection(t *testing.T) {
	bc := &blockingCollector{started: make(chan bool, 1), finished: make(chan error, 1)}
	s := New(bc, airquality.RegionConfig{Name: "test"}, time.Minute, time.Hour, false)

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case hasDeadline := <-bc.started:
		if hasDeadline {
			t.Fatalf("expected the run not to be bounded by the interval")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("expected the first collection to start immediately")
	}

	s.Stop()

	select {
	case err := <-bc.finished:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("expected Stop to cancel the running collection")
	}
}
