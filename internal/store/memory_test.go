package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/i474232898/airquality-idw/internal/airquality"
	"github.com/i474232898/airquality-idw/internal/geo"
)

var baseHour = time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)

func measurement(locID int64, lat, lon float64, param string, value float64, t time.Time) airquality.Measurement {
	return airquality.Measurement{
		LocationID:   locID,
		LocationName: "site",
		Coordinate:   geo.Coordinate{Lat: lat, Lon: lon},
		SensorID:     locID * 10,
		Parameter:    param,
		Value:        value,
		Unit:         "ppm",
		Time:         t,
	}
}

func TestMemoryStoreSaveDeduplicates(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	m := measurement(1, 39.0, -76.0, "o3", 0.03, baseHour)
	n, err := s.SaveMeasurements(ctx, []airquality.Measurement{m, m})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 inserted, got %d", n)
	}

	n, _ = s.SaveMeasurements(ctx, []airquality.Measurement{m})
	if n != 0 {
		t.Fatalf("expected duplicate to be ignored, got %d inserted", n)
	}
}

func TestMemoryStoreQueryOrdering(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	_, _ = s.SaveMeasurements(ctx, []airquality.Measurement{
		measurement(2, 39.2, -76.6, "pm25", 12, baseHour.Add(time.Hour)),
		measurement(2, 39.2, -76.6, "o3", 0.04, baseHour),
		measurement(1, 39.0, -76.0, "o3", 0.03, baseHour),
	})

	got, err := s.Query(ctx, airquality.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 measurements, got %d", len(got))
	}
	if got[0].LocationID != 1 || got[1].LocationID != 2 || got[2].Parameter != "pm25" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestMemoryStoreQueryFilters(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	_, _ = s.SaveMeasurements(ctx, []airquality.Measurement{
		measurement(1, 39.0, -76.0, "o3", 0.03, baseHour),
		measurement(1, 39.0, -76.0, "o3", 0.05, baseHour.Add(2*time.Hour)),
		measurement(2, 39.2, -76.6, "PM25", 9, baseHour),
	})

	got, err := s.Query(ctx, airquality.Filter{Parameter: "pm25"})
	if err != nil || len(got) != 1 || got[0].Value != 9 {
		t.Fatalf("parameter filter: got %+v, %v", got, err)
	}

	got, err = s.Query(ctx, airquality.Filter{LocationKey: "1", From: baseHour.Add(time.Hour)})
	if err != nil || len(got) != 1 || got[0].Value != 0.05 {
		t.Fatalf("location/time filter: got %+v, %v", got, err)
	}

	got, err = s.Query(ctx, airquality.Filter{From: baseHour, To: baseHour})
	if err != nil || len(got) != 2 {
		t.Fatalf("inclusive bounds: got %+v, %v", got, err)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	if _, err := s.Query(ctx, airquality.Filter{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	_, _ = s.SaveMeasurements(ctx, []airquality.Measurement{measurement(1, 39.0, -76.0, "o3", 0.03, baseHour)})
	if _, err := s.Query(ctx, airquality.Filter{LocationKey: "42"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown location, got %v", err)
	}
	if _, err := s.Query(ctx, airquality.Filter{Parameter: "no2"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown parameter, got %v", err)
	}
}

func TestMemoryStoreMaxAge(t *testing.T) {
	s := NewMemoryStore(24 * time.Hour)
	ctx := context.Background()

	old := measurement(1, 39.0, -76.0, "o3", 0.01, baseHour.Add(-48*time.Hour))
	_, _ = s.SaveMeasurements(ctx, []airquality.Measurement{
		old,
		measurement(1, 39.0, -76.0, "o3", 0.02, baseHour),
	})

	got, err := s.Query(ctx, airquality.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Value != 0.02 {
		t.Fatalf("expected old measurement to be dropped, got %+v", got)
	}
}

func TestMemoryStoreLocations(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	_, _ = s.SaveMeasurements(ctx, []airquality.Measurement{
		measurement(2, 39.2, -76.6, "o3", 0.04, baseHour),
		measurement(1, 39.0, -76.0, "o3", 0.03, baseHour),
		measurement(1, 39.0, -76.0, "pm25", 7, baseHour),
	})

	locs, err := s.Locations(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locs) != 2 || locs[0].ID != 1 || locs[1].ID != 2 {
		t.Fatalf("unexpected locations: %+v", locs)
	}
}
