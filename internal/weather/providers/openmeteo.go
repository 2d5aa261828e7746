package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/airquality-idw/internal/common"
	"github.com/i474232898/airquality-idw/internal/geo"
	"github.com/i474232898/airquality-idw/internal/weather"
)

// DefaultOpenMeteoURL is the Open-Meteo historical weather endpoint.
const DefaultOpenMeteoURL = "https://archive-api.open-meteo.com/v1/archive"

const openMeteoHourlyVars = "temperature_2m,dew_point_2m,relative_humidity_2m,precipitation," +
	"wind_direction_10m,wind_speed_10m,pressure_msl,weather_code"

// OpenMeteoProvider implements the weather.Provider interface for the Open-Meteo archive API.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg common.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewOpenMeteoProvider creates a provider; an empty baseURL uses DefaultOpenMeteoURL.
func NewOpenMeteoProvider(client *http.Client, baseURL string) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		httpCfg: common.HTTPClientConfig{
			Client:  client,
			Backoff: common.DefaultBackoff,
		},
		circuit: common.NewBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

type openMeteoResponse struct {
	Hourly struct {
		Time          []string   `json:"time"`
		Temperature   []*float64 `json:"temperature_2m"`
		DewPoint      []*float64 `json:"dew_point_2m"`
		Humidity      []*float64 `json:"relative_humidity_2m"`
		Precipitation []*float64 `json:"precipitation"`
		WindDirection []*float64 `json:"wind_direction_10m"`
		WindSpeed     []*float64 `json:"wind_speed_10m"`
		Pressure      []*float64 `json:"pressure_msl"`
		WeatherCode   []*float64 `json:"weather_code"`
	} `json:"hourly"`
}

func (p *OpenMeteoProvider) Hourly(ctx context.Context, coord geo.Coordinate, day time.Time) ([]weather.Observation, error) {
	if err := coord.Validate(); err != nil {
		return nil, err
	}
	date := day.UTC().Format("2006-01-02")

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(coord.Lat, 'f', 4, 64))
		values.Set("longitude", strconv.FormatFloat(coord.Lon, 'f', 4, 64))
		values.Set("start_date", date)
		values.Set("end_date", date)
		values.Set("hourly", openMeteoHourlyVars)
		values.Set("timezone", "UTC")
		values.Set("wind_speed_unit", "kmh")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	resp, err := common.DoRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding openmeteo response: %w", err)
	}

	h := payload.Hourly
	out := make([]weather.Observation, 0, len(h.Time))
	for i, ts := range h.Time {
		t, err := time.Parse("2006-01-02T15:04", ts)
		if err != nil {
			continue
		}

		obs := weather.Observation{
			Time:             t.UTC(),
			TemperatureC:     at(h.Temperature, i),
			DewPointC:        at(h.DewPoint, i),
			HumidityPct:      at(h.Humidity, i),
			PrecipitationMm:  at(h.Precipitation, i),
			WindDirectionDeg: at(h.WindDirection, i),
			WindSpeedKmh:     at(h.WindSpeed, i),
			PressureHpa:      at(h.Pressure, i),
			Condition:        weather.ConditionUnknown,
		}
		if code := at(h.WeatherCode, i); code != nil {
			c := int(*code)
			obs.ConditionCode = &c
			obs.Condition = weather.ConditionFromCode(c)
		}
		out = append(out, obs)
	}
	return out, nil
}

func at(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}
