package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/airquality-idw/internal/airquality"
	"github.com/i474232898/airquality-idw/internal/idw"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type AppConfig struct {
	OpenAQAPIKey   string
	OpenAQBaseURL  string
	OpenAQPageSize int

	HTTPTimeout time.Duration

	// FetchInterval controls how often the region is collected.
	FetchInterval time.Duration
	// FetchLookback is the window collected on each run, ending now.
	FetchLookback time.Duration

	// Region swept during collection.
	Region airquality.RegionConfig

	StoreDriver string
	SQLitePath  string
	StoreMaxAge time.Duration // 0 = unlimited, memory store only

	// Defaults for estimate requests that omit them.
	IDWPower   float64
	IDWSensors int

	WeatherEnabled bool
	WeatherBaseURL string

	GeocoderAPIKey string

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.OpenAQAPIKey = os.Getenv("OPENAQ_API_KEY")
	cfg.OpenAQBaseURL = os.Getenv("OPENAQ_BASE_URL")
	cfg.OpenAQPageSize = getenvInt("OPENAQ_PAGE_SIZE", 1000)

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = getenvDuration("FETCH_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	if cfg.FetchLookback, err = getenvDuration("FETCH_LOOKBACK", "3h"); err != nil {
		return nil, err
	}

	region, err := loadRegion(os.Getenv("REGION_FILE"))
	if err != nil {
		return nil, err
	}
	if v := os.Getenv("COLLECT_DELAY"); v != "" {
		if region.Delay, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("invalid COLLECT_DELAY: %w", err)
		}
	}
	region.RadiusM = getenvInt("SEARCH_RADIUS_M", region.RadiusM)
	region.LocationLimit = getenvInt("LOCATIONS_LIMIT", region.LocationLimit)
	cfg.Region = region

	cfg.StoreDriver = strings.ToLower(getenvDefault("STORE_DRIVER", StoreMemory))
	if cfg.StoreDriver != StoreMemory && cfg.StoreDriver != StoreSQLite {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: want %s or %s", cfg.StoreDriver, StoreMemory, StoreSQLite)
	}
	cfg.SQLitePath = getenvDefault("SQLITE_PATH", "airquality.db")
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", "0s"); err != nil {
		return nil, err
	}

	cfg.IDWPower = idw.DefaultPower
	if v := os.Getenv("IDW_POWER"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil || !(p > 0) {
			return nil, fmt.Errorf("invalid IDW_POWER %q: must be a positive number", v)
		}
		cfg.IDWPower = p
	}
	if v := os.Getenv("IDW_SENSORS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid IDW_SENSORS %q: must be a non-negative integer", v)
		}
		cfg.IDWSensors = n
	}

	cfg.WeatherEnabled = getenvBool("WEATHER_ENABLED", false)
	cfg.WeatherBaseURL = os.Getenv("WEATHER_BASE_URL")
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	cfg.Port = getenvDefault("PORT", "8080")

	return cfg, nil
}

// loadRegion reads a YAML region file over the default region. Fields left
// out of the file keep their defaults.
func loadRegion(path string) (airquality.RegionConfig, error) {
	region := airquality.DefaultRegion()
	if path == "" {
		return region, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return region, fmt.Errorf("reading REGION_FILE: %w", err)
	}
	if err := yaml.Unmarshal(data, &region); err != nil {
		return region, fmt.Errorf("parsing REGION_FILE %s: %w", path, err)
	}
	if err := region.BBox.Validate(); err != nil {
		return region, fmt.Errorf("REGION_FILE %s: %w", path, err)
	}
	if !(region.Step > 0) {
		return region, fmt.Errorf("REGION_FILE %s: step must be positive", path)
	}
	return region, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
