// Package dataset writes collected measurements as monthly CSV files and
// reads them back for augmentation.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/i474232898/airquality-idw/internal/airquality"
	"github.com/i474232898/airquality-idw/internal/geo"
	"github.com/i474232898/airquality-idw/internal/weather"
)

var (
	// ErrInvalidMonth is returned for months outside 1..12.
	ErrInvalidMonth = errors.New("month must be between 1 and 12")
	// ErrBadHeader is returned when a CSV does not start with the expected columns.
	ErrBadHeader = errors.New("unexpected csv header")
)

var baseColumns = []string{
	"location_name", "latitude", "longitude", "parameter", "value", "unit",
	"year", "month", "day", "hour",
}

var weatherColumns = []string{
	"temp (°C)",
	"dew point (°C)",
	"relative humidity (%)",
	"precipitation (mm)",
	"wind direction (°)",
	"wind speed (km/h)",
	"pressure (hPa)",
	"weather condition code",
}

// Window is one calendar month of collection, From and To inclusive.
type Window struct {
	Year  int
	Month time.Month
	From  time.Time
	To    time.Time
}

// MonthWindows returns the windows for the given months of year in the order
// given. No months means the whole year.
func MonthWindows(year int, months []int) ([]Window, error) {
	if len(months) == 0 {
		months = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	}

	out := make([]Window, 0, len(months))
	for _, m := range months {
		if m < 1 || m > 12 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidMonth, m)
		}
		from := time.Date(year, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
		out = append(out, Window{
			Year:  year,
			Month: time.Month(m),
			From:  from,
			To:    from.AddDate(0, 1, 0).Add(-time.Second),
		})
	}
	return out, nil
}

// FileName returns the file a month of data is written to.
func FileName(prefix string, year int, month time.Month) string {
	return fmt.Sprintf("%s_data_%04d_%02d.csv", prefix, year, int(month))
}

// WriteCSV writes measurements with a header row. Weather columns are added
// when includeWeather is set; measurements without weather leave them empty.
func WriteCSV(w io.Writer, ms []airquality.Measurement, includeWeather bool) error {
	cw := csv.NewWriter(w)

	header := append([]string{}, baseColumns...)
	if includeWeather {
		header = append(header, weatherColumns...)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, m := range ms {
		t := m.Time.UTC()
		row := []string{
			m.LocationName,
			formatFloat(m.Coordinate.Lat),
			formatFloat(m.Coordinate.Lon),
			m.Parameter,
			formatFloat(m.Value),
			m.Unit,
			strconv.Itoa(t.Year()),
			strconv.Itoa(int(t.Month())),
			strconv.Itoa(t.Day()),
			strconv.Itoa(t.Hour()),
		}
		if includeWeather {
			row = append(row, weatherRow(m.Weather)...)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func weatherRow(o *weather.Observation) []string {
	if o == nil {
		return make([]string, len(weatherColumns))
	}
	code := ""
	if o.ConditionCode != nil {
		code = strconv.Itoa(*o.ConditionCode)
	}
	return []string{
		formatOptional(o.TemperatureC),
		formatOptional(o.DewPointC),
		formatOptional(o.HumidityPct),
		formatOptional(o.PrecipitationMm),
		formatOptional(o.WindDirectionDeg),
		formatOptional(o.WindSpeedKmh),
		formatOptional(o.PressureHpa),
		code,
	}
}

// ReadCSV parses a file produced by WriteCSV, with or without weather columns.
func ReadCSV(r io.Reader) ([]airquality.Measurement, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrBadHeader)
		}
		return nil, err
	}
	withWeather, err := checkHeader(header)
	if err != nil {
		return nil, err
	}

	var out []airquality.Measurement
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		m, err := parseRow(rec, withWeather)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func checkHeader(header []string) (bool, error) {
	var withWeather bool
	switch len(header) {
	case len(baseColumns):
	case len(baseColumns) + len(weatherColumns):
		withWeather = true
	default:
		return false, fmt.Errorf("%w: %d columns", ErrBadHeader, len(header))
	}

	want := append([]string{}, baseColumns...)
	if withWeather {
		want = append(want, weatherColumns...)
	}
	for i, col := range header {
		if col != want[i] {
			return false, fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, i+1, col, want[i])
		}
	}
	return withWeather, nil
}

func parseRow(rec []string, withWeather bool) (airquality.Measurement, error) {
	var m airquality.Measurement

	lat, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return m, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return m, fmt.Errorf("longitude: %w", err)
	}
	value, err := strconv.ParseFloat(rec[4], 64)
	if err != nil {
		return m, fmt.Errorf("value: %w", err)
	}

	var ymdh [4]int
	for i := range ymdh {
		if ymdh[i], err = strconv.Atoi(rec[6+i]); err != nil {
			return m, fmt.Errorf("%s: %w", baseColumns[6+i], err)
		}
	}

	m = airquality.Measurement{
		LocationName: rec[0],
		Coordinate:   geo.Coordinate{Lat: lat, Lon: lon},
		Parameter:    rec[3],
		Value:        value,
		Unit:         rec[5],
		Time:         time.Date(ymdh[0], time.Month(ymdh[1]), ymdh[2], ymdh[3], 0, 0, 0, time.UTC),
	}
	if !withWeather {
		return m, nil
	}

	obs, err := parseWeather(rec[len(baseColumns):], m.Time)
	if err != nil {
		return m, err
	}
	m.Weather = obs
	return m, nil
}

func parseWeather(cols []string, t time.Time) (*weather.Observation, error) {
	empty := true
	for _, c := range cols {
		if c != "" {
			empty = false
			break
		}
	}
	if empty {
		return nil, nil
	}

	vals := make([]*float64, 7)
	for i := range vals {
		if cols[i] == "" {
			continue
		}
		f, err := strconv.ParseFloat(cols[i], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", weatherColumns[i], err)
		}
		vals[i] = &f
	}

	obs := &weather.Observation{
		Time:             t,
		TemperatureC:     vals[0],
		DewPointC:        vals[1],
		HumidityPct:      vals[2],
		PrecipitationMm:  vals[3],
		WindDirectionDeg: vals[4],
		WindSpeedKmh:     vals[5],
		PressureHpa:      vals[6],
		Condition:        weather.ConditionUnknown,
	}
	if c := cols[7]; c != "" {
		code, err := strconv.Atoi(c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", weatherColumns[7], err)
		}
		obs.ConditionCode = &code
		obs.Condition = weather.ConditionFromCode(code)
	}
	return obs, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatOptional(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}
