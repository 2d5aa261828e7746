package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/i474232898/airquality-idw/internal/airquality"
	aqproviders "github.com/i474232898/airquality-idw/internal/airquality/providers"
	httpapi "github.com/i474232898/airquality-idw/internal/api/http"
	"github.com/i474232898/airquality-idw/internal/config"
	"github.com/i474232898/airquality-idw/internal/geo"
	"github.com/i474232898/airquality-idw/internal/scheduler"
	"github.com/i474232898/airquality-idw/internal/store"
	"github.com/i474232898/airquality-idw/internal/weather"
	wxproviders "github.com/i474232898/airquality-idw/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("ERROR: failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	var aqStore airquality.Store
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		sqliteStore, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("ERROR: failed to open sqlite store: %v", err)
		}
		defer sqliteStore.Close()
		aqStore = sqliteStore
		log.Printf("INFO: using sqlite store at %s", cfg.SQLitePath)
	default:
		aqStore = store.NewMemoryStore(cfg.StoreMaxAge)
		log.Println("INFO: using in-memory store")
	}

	// Providers with resilience (backoff + circuit breaker).
	var provider airquality.Provider
	if cfg.OpenAQAPIKey != "" {
		provider = aqproviders.NewOpenAQProvider(httpClient, cfg.OpenAQAPIKey, cfg.OpenAQBaseURL, cfg.OpenAQPageSize)
	} else {
		log.Println("INFO: OPENAQ_API_KEY not set; collection disabled, serving stored data only")
	}

	var wx airquality.WeatherLookup
	if cfg.WeatherEnabled {
		wx = weather.NewService(wxproviders.NewOpenMeteoProvider(httpClient, cfg.WeatherBaseURL))
	}

	// Core service orchestrating providers and store.
	service := airquality.NewService(aqStore, provider, wx)

	// Scheduler that periodically collects the region.
	if provider != nil {
		sched := scheduler.New(service, cfg.Region, cfg.FetchInterval, cfg.FetchLookback, cfg.WeatherEnabled)
		if err := sched.Start(); err != nil {
			log.Fatalf("ERROR: failed to start scheduler: %v", err)
		}
		defer sched.Stop()
	}

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "airquality-idw",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "airquality-idw",
		})
	})

	// API routes.
	var resolver httpapi.PlaceResolver
	if cfg.GeocoderAPIKey != "" {
		resolver = geo.NewGeocoder(cfg.GeocoderAPIKey)
	}
	httpapi.RegisterRoutes(app, service, httpapi.Options{
		Region:         cfg.Region,
		DefaultPower:   cfg.IDWPower,
		DefaultSensors: cfg.IDWSensors,
		Geocoder:       resolver,
	})

	// Start server with graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("ERROR: fiber server stopped: %v", err)
		}
	}()
	log.Printf("INFO: listening on :%s", cfg.Port)

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("ERROR: error during shutdown: %v", err)
	}
}
