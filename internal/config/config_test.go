package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"REGION_FILE", "STORE_DRIVER", "IDW_POWER", "FETCH_INTERVAL", "FETCH_LOOKBACK", "SEARCH_RADIUS_M"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FetchInterval != time.Hour || cfg.FetchLookback != 3*time.Hour {
		t.Fatalf("unexpected schedule %v / %v", cfg.FetchInterval, cfg.FetchLookback)
	}
	if cfg.StoreDriver != StoreMemory || cfg.IDWPower != 2 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Region.Name != "maryland" || cfg.Region.Step != 0.25 || cfg.Region.RadiusM != 25000 {
		t.Fatalf("unexpected default region %+v", cfg.Region)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("FETCH_INTERVAL", "30m")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("IDW_POWER", "3")
	t.Setenv("IDW_SENSORS", "5")
	t.Setenv("COLLECT_DELAY", "0s")
	t.Setenv("WEATHER_ENABLED", "true")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FetchInterval != 30*time.Minute || cfg.StoreDriver != StoreSQLite {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.IDWPower != 3 || cfg.IDWSensors != 5 || cfg.Region.Delay != 0 || !cfg.WeatherEnabled {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"FETCH_INTERVAL": "soon",
		"STORE_DRIVER":   "postgres",
		"IDW_POWER":      "0",
		"IDW_SENSORS":    "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}

func TestRegionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.yaml")
	content := `name: baltimore
bbox:
  south: 39.1
  west: -76.8
  north: 39.5
  east: -76.4
step: 0.1
delay: 5s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing region file: %v", err)
	}
	t.Setenv("REGION_FILE", path)
	t.Setenv("COLLECT_DELAY", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := cfg.Region
	if r.Name != "baltimore" || r.BBox.North != 39.5 || r.Step != 0.1 || r.Delay != 5*time.Second {
		t.Fatalf("unexpected region %+v", r)
	}
	if r.RadiusM != 25000 || r.LocationLimit != 100 {
		t.Fatalf("expected unset fields to keep defaults, got %+v", r)
	}
}

func TestRegionFileInvalidBox(t *testing.T) {
	path := filepath.Join(t.TempDir(), "region.yaml")
	if err := os.WriteFile(path, []byte("bbox: {south: 40, west: -76, north: 39, east: -75}\n"), 0o600); err != nil {
		t.Fatalf("writing region file: %v", err)
	}
	t.Setenv("REGION_FILE", path)

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for inverted bounding box")
	}
}
