package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/i474232898/airquality-idw/internal/airquality"
	"github.com/i474232898/airquality-idw/internal/weather"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "airquality.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreSaveAndQuery(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	temp := 4.5
	code := 61
	withWeather := measurement(1, 39.0, -76.0, "o3", 0.03, baseHour)
	withWeather.Weather = &weather.Observation{
		Time:          baseHour,
		TemperatureC:  &temp,
		ConditionCode: &code,
		Condition:     weather.ConditionRain,
	}

	n, err := s.SaveMeasurements(ctx, []airquality.Measurement{
		withWeather,
		withWeather,
		measurement(2, 39.2, -76.6, "PM25", 9, baseHour.Add(time.Hour)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserted, got %d", n)
	}

	got, err := s.Query(ctx, airquality.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 measurements, got %d", len(got))
	}

	first := got[0]
	if first.LocationID != 1 || first.Value != 0.03 || !first.Time.Equal(baseHour) {
		t.Fatalf("unexpected first measurement %+v", first)
	}
	if first.Weather == nil || first.Weather.TemperatureC == nil || *first.Weather.TemperatureC != 4.5 {
		t.Fatalf("expected weather to round-trip, got %+v", first.Weather)
	}
	if first.Weather.DewPointC != nil {
		t.Fatalf("expected missing dew point to stay nil")
	}
	if first.Weather.ConditionCode == nil || *first.Weather.ConditionCode != 61 || first.Weather.Condition != weather.ConditionRain {
		t.Fatalf("unexpected condition %+v", first.Weather)
	}
	if got[1].Weather != nil {
		t.Fatalf("expected no weather on second measurement")
	}
}

func TestSQLiteStoreFilters(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.SaveMeasurements(ctx, []airquality.Measurement{
		measurement(1, 39.0, -76.0, "o3", 0.03, baseHour),
		measurement(1, 39.0, -76.0, "o3", 0.05, baseHour.Add(2*time.Hour)),
		measurement(2, 39.2, -76.6, "PM25", 9, baseHour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Query(ctx, airquality.Filter{Parameter: "pm25"})
	if err != nil || len(got) != 1 || got[0].Value != 9 {
		t.Fatalf("parameter filter: got %+v, %v", got, err)
	}

	got, err = s.Query(ctx, airquality.Filter{LocationKey: "1", From: baseHour.Add(30 * time.Minute)})
	if err != nil || len(got) != 1 || got[0].Value != 0.05 {
		t.Fatalf("location/time filter: got %+v, %v", got, err)
	}

	got, err = s.Query(ctx, airquality.Filter{From: baseHour, To: baseHour})
	if err != nil || len(got) != 2 {
		t.Fatalf("inclusive bounds: got %+v, %v", got, err)
	}

	if _, err := s.Query(ctx, airquality.Filter{Parameter: "no2"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStoreLocations(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := s.SaveMeasurements(ctx, []airquality.Measurement{
		measurement(2, 39.2, -76.6, "o3", 0.04, baseHour),
		measurement(1, 39.0, -76.0, "o3", 0.03, baseHour),
		measurement(1, 39.0, -76.0, "pm25", 7, baseHour),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	locs, err := s.Locations(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locs) != 2 || locs[0].ID != 1 || locs[1].Coordinate.Lat != 39.2 {
		t.Fatalf("unexpected locations: %+v", locs)
	}
}

func TestSQLiteStoreSaveEmpty(t *testing.T) {
	s := newTestSQLiteStore(t)
	n, err := s.SaveMeasurements(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("expected no-op, got %d, %v", n, err)
	}
}
