// Command airquality-dataset builds monthly CSV datasets of regional
// air-quality measurements, optionally merged with hourly weather.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/i474232898/airquality-idw/internal/airquality"
	aqproviders "github.com/i474232898/airquality-idw/internal/airquality/providers"
	"github.com/i474232898/airquality-idw/internal/config"
	"github.com/i474232898/airquality-idw/internal/dataset"
	"github.com/i474232898/airquality-idw/internal/store"
	"github.com/i474232898/airquality-idw/internal/weather"
	wxproviders "github.com/i474232898/airquality-idw/internal/weather/providers"
)

const usage = `usage: airquality-dataset <command> [flags]

commands:
  collect   sweep the region and write one CSV per month
  augment   add weather columns to an existing CSV
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("ERROR: failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "collect":
		err = runCollect(ctx, cfg, os.Args[2:])
	case "augment":
		err = runAugment(ctx, cfg, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("ERROR: %s: %v", os.Args[1], err)
	}
}

func runCollect(ctx context.Context, cfg *config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	year := fs.Int("year", 0, "calendar year to collect (required)")
	months := fs.String("months", "", "comma separated months, e.g. 1,2,3 (default: all)")
	outDir := fs.String("out", ".", "output directory")
	prefix := fs.String("prefix", cfg.Region.Name, "file name prefix")
	withWeather := fs.Bool("weather", cfg.WeatherEnabled, "merge hourly weather into each row")
	_ = fs.Parse(args)

	if *year == 0 {
		return errors.New("-year is required")
	}
	if cfg.OpenAQAPIKey == "" {
		return errors.New("OPENAQ_API_KEY is not set")
	}
	monthList, err := parseMonths(*months)
	if err != nil {
		return err
	}
	windows, err := dataset.MonthWindows(*year, monthList)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	provider := aqproviders.NewOpenAQProvider(httpClient, cfg.OpenAQAPIKey, cfg.OpenAQBaseURL, cfg.OpenAQPageSize)
	var wx airquality.WeatherLookup
	if *withWeather {
		wx = weather.NewService(wxproviders.NewOpenMeteoProvider(httpClient, cfg.WeatherBaseURL))
	}

	for _, w := range windows {
		// A fresh store per month keeps each file to its own window.
		monthStore := store.NewMemoryStore(0)
		service := airquality.NewService(monthStore, provider, wx)

		log.Printf("INFO: collect: %s %d-%02d", cfg.Region.Name, w.Year, int(w.Month))
		report, err := service.CollectRegion(ctx, cfg.Region, w.From, w.To, *withWeather)
		if err != nil {
			return fmt.Errorf("%d-%02d: %w", w.Year, int(w.Month), err)
		}

		ms, err := monthStore.Query(ctx, airquality.Filter{})
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		path := filepath.Join(*outDir, dataset.FileName(*prefix, w.Year, w.Month))
		size, err := writeFile(path, ms, *withWeather)
		if err != nil {
			return err
		}
		log.Printf("INFO: collect: wrote %s (%s rows, %s, %d/%d points failed)",
			path, humanize.Comma(int64(len(ms))), humanize.Bytes(uint64(size)), report.FailedPoints, report.Points)
	}
	return nil
}

func runAugment(ctx context.Context, cfg *config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("augment", flag.ExitOnError)
	in := fs.String("in", "", "input CSV written by collect (required)")
	out := fs.String("out", "", "output CSV (default: <in> with _weather suffix)")
	_ = fs.Parse(args)

	if *in == "" {
		return errors.New("-in is required")
	}
	if *out == "" {
		*out = strings.TrimSuffix(*in, filepath.Ext(*in)) + "_weather.csv"
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	ms, err := dataset.ReadCSV(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("reading %s: %w", *in, err)
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	wx := weather.NewService(wxproviders.NewOpenMeteoProvider(httpClient, cfg.WeatherBaseURL))
	service := airquality.NewService(nil, nil, wx)

	n, err := service.Augment(ctx, ms)
	if err != nil {
		return err
	}

	size, err := writeFile(*out, ms, true)
	if err != nil {
		return err
	}
	log.Printf("INFO: augment: wrote %s (%s of %s rows with weather, %s)",
		*out, humanize.Comma(int64(n)), humanize.Comma(int64(len(ms))), humanize.Bytes(uint64(size)))
	return nil
}

func writeFile(path string, ms []airquality.Measurement, withWeather bool) (size int64, err error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err = dataset.WriteCSV(f, ms, withWeather); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func parseMonths(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		m, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid month %q", part)
		}
		out = append(out, m)
	}
	return out, nil
}
