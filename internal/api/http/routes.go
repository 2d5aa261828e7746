package httpapi

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/airquality-idw/internal/airquality"
	"github.com/i474232898/airquality-idw/internal/geo"
	"github.com/i474232898/airquality-idw/internal/idw"
)

var validate = validator.New()

// PlaceResolver turns a city/state/country query into a coordinate.
type PlaceResolver interface {
	Resolve(ctx context.Context, p geo.Place) (geo.Coordinate, error)
}

// Options holds the defaults applied to requests that omit them.
type Options struct {
	Region         airquality.RegionConfig
	DefaultPower   float64
	DefaultSensors int
	Geocoder       PlaceResolver
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *airquality.Service, opts Options) {
	if opts.DefaultPower == 0 {
		opts.DefaultPower = idw.DefaultPower
	}
	v1 := app.Group("/api/v1")

	v1.Get("/estimate", func(c *fiber.Ctx) error {
		var req estimateQuery
		if err := req.bind(c, opts); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var target geo.Coordinate
		if req.Place != nil {
			coord, err := resolvePlace(c.UserContext(), opts.Geocoder, *req.Place)
			if err != nil {
				return err
			}
			target = coord
		} else {
			target = geo.Coordinate{Lat: *req.Lat, Lon: *req.Lon}
		}

		prediction, err := service.Predict(c.UserContext(), airquality.PredictRequest{
			Target:    target,
			Pollutant: req.Pollutant,
			Time:      req.Time,
			Sensors:   req.Sensors,
			Power:     req.Power,
		})
		if err != nil {
			return httpError(err, "failed to estimate pollutant")
		}
		return c.JSON(prediction)
	})

	v1.Post("/estimate/batch", func(c *fiber.Ctx) error {
		var body batchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ts, err := parseTime(body.Time)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		power := opts.DefaultPower
		if body.Power != nil {
			power = *body.Power
		}
		sensors := opts.DefaultSensors
		if body.Sensors != nil {
			sensors = *body.Sensors
		}

		cells, err := service.PredictPoints(c.UserContext(), body.Pollutant, ts, body.Points, sensors, power)
		if err != nil {
			return httpError(err, "failed to estimate pollutant")
		}
		return c.JSON(fiber.Map{
			"pollutant": body.Pollutant,
			"time":      ts.UTC().Truncate(time.Hour),
			"power":     power,
			"results":   cells,
		})
	})

	v1.Get("/estimate/grid", func(c *fiber.Ctx) error {
		var req gridQuery
		if err := req.bind(c, opts); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		cells, err := service.PredictGrid(c.UserContext(), airquality.GridRequest{
			Pollutant: req.Pollutant,
			Time:      req.Time,
			BBox:      opts.Region.BBox,
			Step:      req.Step,
			Sensors:   req.Sensors,
			Power:     req.Power,
		})
		if err != nil {
			return httpError(err, "failed to estimate grid")
		}
		return c.JSON(fiber.Map{
			"pollutant": req.Pollutant,
			"time":      req.Time.UTC().Truncate(time.Hour),
			"power":     req.Power,
			"step":      req.Step,
			"bbox":      opts.Region.BBox,
			"cells":     cells,
		})
	})

	v1.Get("/measurements", func(c *fiber.Ctx) error {
		var req rangeQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ms, err := service.Measurements(c.UserContext(), req.filter())
		if err != nil {
			return httpError(err, "failed to fetch measurements")
		}
		return c.JSON(fiber.Map{
			"count":        len(ms),
			"measurements": ms,
		})
	})

	v1.Get("/averages", func(c *fiber.Ctx) error {
		var req rangeQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ms, err := service.Measurements(c.UserContext(), req.filter())
		if err != nil {
			return httpError(err, "failed to fetch measurements")
		}
		return c.JSON(fiber.Map{
			"averages": airquality.HourOfDayAverages(ms),
		})
	})

	v1.Get("/locations", func(c *fiber.Ctx) error {
		locs, err := service.Locations(c.UserContext())
		if err != nil {
			return httpError(err, "failed to fetch locations")
		}
		return c.JSON(fiber.Map{
			"count":     len(locs),
			"locations": locs,
		})
	})
}

// ErrorHandler renders every error as {"error": true, "message": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

// httpError maps domain errors to HTTP status codes. Unknown errors are
// logged and replaced by msg.
func httpError(err error, msg string) error {
	switch {
	case errors.Is(err, idw.ErrInvalidInput),
		errors.Is(err, geo.ErrInvalidCoordinate),
		errors.Is(err, geo.ErrInvalidGrid):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, airquality.ErrNoSamples),
		errors.Is(err, airquality.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, msg)
	default:
		log.Printf("ERROR: api: %s: %v", msg, err)
		return fiber.NewError(fiber.StatusInternalServerError, msg)
	}
}

func resolvePlace(ctx context.Context, resolver PlaceResolver, p geo.Place) (geo.Coordinate, error) {
	if resolver == nil {
		return geo.Coordinate{}, fiber.NewError(fiber.StatusBadRequest, geo.ErrGeocoderDisabled.Error())
	}
	coord, err := resolver.Resolve(ctx, p)
	switch {
	case err == nil:
		return coord, nil
	case errors.Is(err, geo.ErrGeocoderDisabled), errors.Is(err, geo.ErrPlaceRequired):
		return geo.Coordinate{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		log.Printf("ERROR: api: geocoding %q failed: %v", p.Key(), err)
		return geo.Coordinate{}, fiber.NewError(fiber.StatusBadGateway, "failed to resolve place")
	}
}

// estimateQuery holds query parameters for the single-point estimate. The
// target is either lat/lon or a place.
type estimateQuery struct {
	Pollutant string    `validate:"required"`
	Time      time.Time `validate:"required"`
	Lat       *float64  `validate:"omitempty,min=-90,max=90"`
	Lon       *float64  `validate:"omitempty,min=-180,max=180"`
	Place     *geo.Place
	Power     float64 `validate:"gt=0"`
	Sensors   int     `validate:"gte=0"`
}

func (q *estimateQuery) bind(c *fiber.Ctx, opts Options) error {
	q.Pollutant = strings.TrimSpace(c.Query("pollutant"))

	ts, err := requiredTime(c, "time")
	if err != nil {
		return err
	}
	q.Time = ts

	if c.Query("lat") != "" || c.Query("lon") != "" {
		if q.Lat, err = floatQuery(c, "lat"); err != nil {
			return err
		}
		if q.Lon, err = floatQuery(c, "lon"); err != nil {
			return err
		}
	} else if city := strings.TrimSpace(c.Query("city")); city != "" {
		q.Place = &geo.Place{City: city, State: c.Query("state"), Country: c.Query("country")}
	} else {
		return errors.New("lat and lon, or city, query parameters are required")
	}

	if q.Power, err = powerQuery(c, opts.DefaultPower); err != nil {
		return err
	}
	q.Sensors, err = sensorsQuery(c, opts.DefaultSensors)
	return err
}

// gridQuery holds query parameters for the grid endpoint.
type gridQuery struct {
	Pollutant string    `validate:"required"`
	Time      time.Time `validate:"required"`
	Step      float64   `validate:"gt=0"`
	Power     float64   `validate:"gt=0"`
	Sensors   int       `validate:"gte=0"`
}

func (q *gridQuery) bind(c *fiber.Ctx, opts Options) error {
	q.Pollutant = strings.TrimSpace(c.Query("pollutant"))

	ts, err := requiredTime(c, "time")
	if err != nil {
		return err
	}
	q.Time = ts

	q.Step = opts.Region.Step
	if c.Query("step") != "" {
		step, err := floatQuery(c, "step")
		if err != nil {
			return err
		}
		q.Step = *step
	}

	if q.Power, err = powerQuery(c, opts.DefaultPower); err != nil {
		return err
	}
	q.Sensors, err = sensorsQuery(c, opts.DefaultSensors)
	return err
}

// batchRequest is the body of the batch estimate endpoint.
type batchRequest struct {
	Pollutant string           `json:"pollutant" validate:"required"`
	Time      string           `json:"time" validate:"required"`
	Power     *float64         `json:"power" validate:"omitempty,gt=0"`
	Sensors   *int             `json:"sensors" validate:"omitempty,gte=0"`
	Points    []geo.Coordinate `json:"points" validate:"required,min=1"`
}

// rangeQuery holds the optional filters of the measurement endpoints.
type rangeQuery struct {
	Pollutant string
	Location  string
	From      time.Time
	To        time.Time `validate:"omitempty,gtefield=From"`
}

func (q *rangeQuery) bind(c *fiber.Ctx) error {
	q.Pollutant = strings.TrimSpace(c.Query("pollutant"))
	q.Location = strings.TrimSpace(c.Query("location"))

	if s := c.Query("from"); s != "" {
		from, err := parseTime(s)
		if err != nil {
			return err
		}
		q.From = from
	}
	if s := c.Query("to"); s != "" {
		to, err := parseTime(s)
		if err != nil {
			return err
		}
		q.To = to
	}
	return nil
}

func (q rangeQuery) filter() airquality.Filter {
	return airquality.Filter{
		Parameter:   q.Pollutant,
		LocationKey: q.Location,
		From:        q.From,
		To:          q.To,
	}
}

func requiredTime(c *fiber.Ctx, key string) (time.Time, error) {
	s := c.Query(key)
	if s == "" {
		return time.Time{}, errors.New(key + " query parameter is required")
	}
	return parseTime(s)
}

func floatQuery(c *fiber.Ctx, key string) (*float64, error) {
	f, err := strconv.ParseFloat(c.Query(key), 64)
	if err != nil {
		return nil, errors.New("invalid " + key + ": must be a number")
	}
	return &f, nil
}

// powerQuery applies def only when power is absent; an explicit value is
// always validated.
func powerQuery(c *fiber.Ctx, def float64) (float64, error) {
	if c.Query("power") == "" {
		return def, nil
	}
	p, err := floatQuery(c, "power")
	if err != nil {
		return 0, err
	}
	return *p, nil
}

func sensorsQuery(c *fiber.Ctx, def int) (int, error) {
	s := c.Query("sensors")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("invalid sensors: must be an integer")
	}
	return n, nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
