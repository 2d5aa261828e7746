package dataset

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/i474232898/airquality-idw/internal/airquality"
	"github.com/i474232898/airquality-idw/internal/geo"
	"github.com/i474232898/airquality-idw/internal/weather"
)

func TestMonthWindowsLeapYear(t *testing.T) {
	windows, err := MonthWindows(2024, []int{2, 12})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if windows[0].To.Day() != 29 || windows[0].To.Month() != time.February {
		t.Fatalf("expected February 2024 to end on the 29th, got %v", windows[0].To)
	}
	if !windows[1].From.Equal(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)) || windows[1].To.Day() != 31 {
		t.Fatalf("unexpected December window %+v", windows[1])
	}

	windows, _ = MonthWindows(2023, []int{2})
	if windows[0].To.Day() != 28 {
		t.Fatalf("expected February 2023 to end on the 28th, got %v", windows[0].To)
	}
}

func TestMonthWindowsDefaultsAndErrors(t *testing.T) {
	windows, err := MonthWindows(2020, nil)
	if err != nil || len(windows) != 12 {
		t.Fatalf("expected 12 windows, got %d, %v", len(windows), err)
	}
	if _, err := MonthWindows(2020, []int{13}); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("maryland", 2020, time.March); got != "maryland_data_2020_03.csv" {
		t.Fatalf("unexpected file name %q", got)
	}
}

func sample() []airquality.Measurement {
	temp, rhum := 4.2, 81.0
	code := 3
	ts := time.Date(2020, 1, 2, 5, 0, 0, 0, time.UTC)
	return []airquality.Measurement{
		{
			LocationName: "HU-Beltsville",
			Coordinate:   geo.Coordinate{Lat: 39.055302, Lon: -76.878304},
			Parameter:    "o3",
			Value:        0.031,
			Unit:         "ppm",
			Time:         ts,
			Weather: &weather.Observation{
				Time:          ts,
				TemperatureC:  &temp,
				HumidityPct:   &rhum,
				ConditionCode: &code,
				Condition:     weather.ConditionCloudy,
			},
		},
		{
			LocationName: "Essex, MD",
			Coordinate:   geo.Coordinate{Lat: 39.31, Lon: -76.47},
			Parameter:    "pm25",
			Value:        8,
			Unit:         "µg/m³",
			Time:         ts.Add(time.Hour),
		},
	}
}

func TestWriteCSVWithoutWeather(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "location_name,latitude,longitude,parameter,value,unit,year,month,day,hour" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if lines[1] != "HU-Beltsville,39.055302,-76.878304,o3,0.031,ppm,2020,1,2,5" {
		t.Fatalf("unexpected row %q", lines[1])
	}
	if lines[2] != `"Essex, MD",39.31,-76.47,pm25,8,µg/m³,2020,1,2,6` {
		t.Fatalf("unexpected row %q", lines[2])
	}
}

func TestWriteCSVWithWeather(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !strings.HasSuffix(lines[0], "pressure (hPa),weather condition code") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], ",4.2,,81,,,,,3") {
		t.Fatalf("unexpected weather columns %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",,,,,,,,") {
		t.Fatalf("expected empty weather columns, got %q", lines[2])
	}
}

func TestReadCSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sample(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 measurements, got %d", len(got))
	}

	first := got[0]
	if first.LocationName != "HU-Beltsville" || first.Value != 0.031 || !first.Time.Equal(time.Date(2020, 1, 2, 5, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected measurement %+v", first)
	}
	if first.Weather == nil || *first.Weather.TemperatureC != 4.2 || first.Weather.DewPointC != nil {
		t.Fatalf("unexpected weather %+v", first.Weather)
	}
	if first.Weather.Condition != weather.ConditionCloudy {
		t.Fatalf("expected condition derived from code, got %q", first.Weather.Condition)
	}
	if got[1].Weather != nil {
		t.Fatalf("expected no weather on second row")
	}
}

func TestReadCSVRejectsUnknownHeader(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("a,b,c\n1,2,3\n")); !errors.Is(err, ErrBadHeader) {
		t.Fatalf("expected ErrBadHeader, got %v", err)
	}
	if _, err := ReadCSV(strings.NewReader("")); !errors.Is(err, ErrBadHeader) {
		t.Fatalf("expected ErrBadHeader for empty input, got %v", err)
	}
}

func TestReadCSVReportsLine(t *testing.T) {
	in := "location_name,latitude,longitude,parameter,value,unit,year,month,day,hour\n" +
		"x,39,-76,o3,oops,ppm,2020,1,1,0\n"
	_, err := ReadCSV(strings.NewReader(in))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line number in error, got %v", err)
	}
}
