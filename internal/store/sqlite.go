package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/i474232898/airquality-idw/internal/airquality"
	"github.com/i474232898/airquality-idw/internal/geo"
	"github.com/i474232898/airquality-idw/internal/weather"
)

// SQLiteStore implements airquality.Store on a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err = db.Exec(initSchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func closeWithError(c io.Closer, err *error) {
	if cerr := c.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// SaveMeasurements inserts all measurements in one transaction, ignoring
// ones whose dedup key is already stored.
func (s *SQLiteStore) SaveMeasurements(ctx context.Context, ms []airquality.Measurement) (inserted int, err error) {
	if len(ms) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertMeasurementSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, m := range ms {
		args := []any{
			m.DedupKey(),
			m.LocationKey(),
			m.LocationID,
			m.LocationName,
			m.Coordinate.Lat,
			m.Coordinate.Lon,
			m.SensorID,
			m.Parameter,
			m.Value,
			m.Unit,
			m.Time.UTC().Truncate(time.Hour).Unix(),
		}
		args = append(args, weatherArgs(m.Weather)...)

		res, execErr := stmt.ExecContext(ctx, args...)
		if execErr != nil {
			err = fmt.Errorf("inserting measurement: %w", execErr)
			return 0, err
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return inserted, nil
}

func weatherArgs(w *weather.Observation) []any {
	if w == nil {
		return []any{0, nil, nil, nil, nil, nil, nil, nil, nil, nil}
	}

	var coco sql.NullInt64
	if w.ConditionCode != nil {
		coco = sql.NullInt64{Int64: int64(*w.ConditionCode), Valid: true}
	}
	return []any{
		1,
		nullFloat(w.TemperatureC),
		nullFloat(w.DewPointC),
		nullFloat(w.HumidityPct),
		nullFloat(w.PrecipitationMm),
		nullFloat(w.WindDirectionDeg),
		nullFloat(w.WindSpeedKmh),
		nullFloat(w.PressureHpa),
		coco,
		string(w.Condition),
	}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// Query returns measurements matching f ordered by time, location key and parameter.
func (s *SQLiteStore) Query(ctx context.Context, f airquality.Filter) (result []airquality.Measurement, err error) {
	var (
		where []string
		args  []any
	)
	if f.Parameter != "" {
		where = append(where, "parameter = ? COLLATE NOCASE")
		args = append(args, f.Parameter)
	}
	if f.LocationKey != "" {
		where = append(where, "location_key = ?")
		args = append(args, f.LocationKey)
	}
	if !f.From.IsZero() {
		// Stored hours are truncated, so round the lower bound up.
		from := f.From.UTC()
		if t := from.Truncate(time.Hour); t.Before(from) {
			from = t.Add(time.Hour)
		}
		where = append(where, "hour >= ?")
		args = append(args, from.Unix())
	}
	if !f.To.IsZero() {
		where = append(where, "hour <= ?")
		args = append(args, f.To.UTC().Truncate(time.Hour).Unix())
	}

	query := selectMeasurementsSQL
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY hour, location_key, parameter"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying measurements: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			m          airquality.Measurement
			hour       int64
			hasWeather int
			temp, dwpt sql.NullFloat64
			rhum, prcp sql.NullFloat64
			wdir, wspd sql.NullFloat64
			pres       sql.NullFloat64
			coco       sql.NullInt64
			condition  sql.NullString
		)
		if err = rows.Scan(&m.LocationID, &m.LocationName, &m.Coordinate.Lat, &m.Coordinate.Lon,
			&m.SensorID, &m.Parameter, &m.Value, &m.Unit, &hour, &hasWeather,
			&temp, &dwpt, &rhum, &prcp, &wdir, &wspd, &pres, &coco, &condition); err != nil {
			return nil, fmt.Errorf("scanning measurement: %w", err)
		}
		m.Time = time.Unix(hour, 0).UTC()

		if hasWeather == 1 {
			obs := &weather.Observation{
				Time:             m.Time,
				TemperatureC:     floatPtr(temp),
				DewPointC:        floatPtr(dwpt),
				HumidityPct:      floatPtr(rhum),
				PrecipitationMm:  floatPtr(prcp),
				WindDirectionDeg: floatPtr(wdir),
				WindSpeedKmh:     floatPtr(wspd),
				PressureHpa:      floatPtr(pres),
				Condition:        weather.Condition(condition.String),
			}
			if coco.Valid {
				c := int(coco.Int64)
				obs.ConditionCode = &c
			}
			m.Weather = obs
		}
		result = append(result, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating measurements: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Locations returns every location with stored measurements, ordered by key.
func (s *SQLiteStore) Locations(ctx context.Context) (out []airquality.Location, err error) {
	rows, err := s.db.QueryContext(ctx, selectLocationsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var (
			key string
			loc airquality.Location
			c   geo.Coordinate
		)
		if err = rows.Scan(&key, &loc.ID, &loc.Name, &c.Lat, &c.Lon); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		loc.Coordinate = c
		out = append(out, loc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating locations: %w", err)
	}
	return out, nil
}
