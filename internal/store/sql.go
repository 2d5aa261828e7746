package store

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS measurements (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    dedup_key          TEXT    NOT NULL UNIQUE,
    location_key       TEXT    NOT NULL,
    location_id        INTEGER NOT NULL,
    location_name      TEXT    NOT NULL,
    latitude           REAL    NOT NULL,
    longitude          REAL    NOT NULL,
    sensor_id          INTEGER NOT NULL,
    parameter          TEXT    NOT NULL,
    value              REAL    NOT NULL,
    unit               TEXT    NOT NULL,
    hour               INTEGER NOT NULL,
    has_weather        INTEGER NOT NULL DEFAULT 0,
    temperature_c      REAL,
    dew_point_c        REAL,
    humidity_pct       REAL,
    precipitation_mm   REAL,
    wind_direction_deg REAL,
    wind_speed_kmh     REAL,
    pressure_hpa       REAL,
    condition_code     INTEGER,
    weather_condition  TEXT
);
CREATE INDEX IF NOT EXISTS idx_measurements_parameter_hour ON measurements (parameter COLLATE NOCASE, hour);
CREATE INDEX IF NOT EXISTS idx_measurements_location_hour ON measurements (location_key, hour);`

	insertMeasurementSQL = `
INSERT OR IGNORE INTO measurements (dedup_key,
                                    location_key,
                                    location_id,
                                    location_name,
                                    latitude,
                                    longitude,
                                    sensor_id,
                                    parameter,
                                    value,
                                    unit,
                                    hour,
                                    has_weather,
                                    temperature_c,
                                    dew_point_c,
                                    humidity_pct,
                                    precipitation_mm,
                                    wind_direction_deg,
                                    wind_speed_kmh,
                                    pressure_hpa,
                                    condition_code,
                                    weather_condition)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectMeasurementsSQL = `
SELECT location_id,
       location_name,
       latitude,
       longitude,
       sensor_id,
       parameter,
       value,
       unit,
       hour,
       has_weather,
       temperature_c,
       dew_point_c,
       humidity_pct,
       precipitation_mm,
       wind_direction_deg,
       wind_speed_kmh,
       pressure_hpa,
       condition_code,
       weather_condition
FROM measurements`

	selectLocationsSQL = `
SELECT location_key,
       location_id,
       location_name,
       latitude,
       longitude
FROM measurements
GROUP BY location_key
ORDER BY location_key`
)
