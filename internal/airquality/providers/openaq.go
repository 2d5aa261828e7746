package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/airquality-idw/internal/airquality"
	"github.com/i474232898/airquality-idw/internal/common"
	"github.com/i474232898/airquality-idw/internal/geo"
)

const (
	// DefaultOpenAQURL is the OpenAQ v3 API root.
	DefaultOpenAQURL = "https://api.openaq.org/v3"
	// DefaultPageSize is the number of hourly records requested per page.
	DefaultPageSize = 1000
	// DefaultMaxPages bounds how many pages Hours requests for one sensor.
	DefaultMaxPages = 1000
)

// OpenAQProvider implements the airquality.Provider interface for OpenAQ v3.
type OpenAQProvider struct {
	name     string
	apiKey   string
	baseURL  string
	pageSize int
	maxPages int
	httpCfg  common.HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

// NewOpenAQProvider creates a provider. An empty baseURL uses DefaultOpenAQURL
// and a non-positive pageSize uses DefaultPageSize.
func NewOpenAQProvider(client *http.Client, apiKey, baseURL string, pageSize int) *OpenAQProvider {
	if baseURL == "" {
		baseURL = DefaultOpenAQURL
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &OpenAQProvider{
		name:     "openaq",
		apiKey:   apiKey,
		baseURL:  baseURL,
		pageSize: pageSize,
		maxPages: DefaultMaxPages,
		httpCfg: common.HTTPClientConfig{
			Client:  client,
			Backoff: common.DefaultBackoff,
		},
		circuit: common.NewBreaker("openaq"),
	}
}

func (p *OpenAQProvider) Name() string {
	return p.name
}

type openAQParameter struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Units       string `json:"units"`
	DisplayName string `json:"displayName"`
}

func (op openAQParameter) toParameter() airquality.Parameter {
	return airquality.Parameter{
		ID:          op.ID,
		Name:        op.Name,
		DisplayName: op.DisplayName,
		Units:       op.Units,
	}
}

func (p *OpenAQProvider) Locations(ctx context.Context, center geo.Coordinate, radiusM, limit int) ([]airquality.Location, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("coordinates", fmt.Sprintf("%s,%s",
		strconv.FormatFloat(center.Lat, 'f', -1, 64),
		strconv.FormatFloat(center.Lon, 'f', -1, 64)))
	values.Set("radius", strconv.Itoa(radiusM))
	values.Set("limit", strconv.Itoa(limit))

	var payload struct {
		Results []struct {
			ID          int64  `json:"id"`
			Name        string `json:"name"`
			Coordinates *struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"coordinates"`
		} `json:"results"`
	}
	if err := p.get(ctx, "/locations", values, &payload); err != nil {
		return nil, err
	}

	out := make([]airquality.Location, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.Coordinates == nil {
			continue
		}
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("Location %d", r.ID)
		}
		out = append(out, airquality.Location{
			ID:         r.ID,
			Name:       name,
			Coordinate: geo.Coordinate{Lat: r.Coordinates.Latitude, Lon: r.Coordinates.Longitude},
		})
	}
	return out, nil
}

func (p *OpenAQProvider) Sensors(ctx context.Context, locationID int64) ([]airquality.Sensor, error) {
	var payload struct {
		Results []struct {
			ID        int64           `json:"id"`
			Name      string          `json:"name"`
			Parameter openAQParameter `json:"parameter"`
		} `json:"results"`
	}
	if err := p.get(ctx, fmt.Sprintf("/locations/%d/sensors", locationID), nil, &payload); err != nil {
		return nil, err
	}

	out := make([]airquality.Sensor, 0, len(payload.Results))
	for _, r := range payload.Results {
		out = append(out, airquality.Sensor{
			ID:        r.ID,
			Name:      r.Name,
			Parameter: r.Parameter.toParameter(),
		})
	}
	return out, nil
}

type openAQHour struct {
	Value     *float64        `json:"value"`
	Parameter openAQParameter `json:"parameter"`
	Period    struct {
		DatetimeFrom struct {
			UTC string `json:"utc"`
		} `json:"datetimeFrom"`
	} `json:"period"`
}

// Hours pages through /sensors/{id}/hours until a short page is returned.
// Records without a value or start time are skipped. When the page limit is
// reached first the readings collected so far are returned and the
// truncation is logged.
func (p *OpenAQProvider) Hours(ctx context.Context, sensorID int64, from, to time.Time) ([]airquality.Reading, error) {
	var out []airquality.Reading

	for page := 1; ; page++ {
		values := url.Values{}
		values.Set("datetime_from", from.UTC().Format(time.RFC3339))
		values.Set("datetime_to", to.UTC().Format(time.RFC3339))
		values.Set("sort", "asc")
		values.Set("limit", strconv.Itoa(p.pageSize))
		values.Set("page", strconv.Itoa(page))

		var payload struct {
			Results []openAQHour `json:"results"`
		}
		if err := p.get(ctx, fmt.Sprintf("/sensors/%d/hours", sensorID), values, &payload); err != nil {
			return nil, fmt.Errorf("sensor %d page %d: %w", sensorID, page, err)
		}

		for _, r := range payload.Results {
			if r.Value == nil || r.Period.DatetimeFrom.UTC == "" {
				continue
			}
			ts, err := time.Parse(time.RFC3339, r.Period.DatetimeFrom.UTC)
			if err != nil {
				continue
			}
			out = append(out, airquality.Reading{
				Parameter: r.Parameter.toParameter(),
				Value:     *r.Value,
				Time:      ts.UTC(),
			})
		}

		if len(payload.Results) < p.pageSize {
			return out, nil
		}
		if page >= p.maxPages {
			log.Printf("ERROR: openaq: sensor %d: stopped after %d pages of %d records, %s .. %s truncated at %d readings",
				sensorID, page, p.pageSize, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339), len(out))
			return out, nil
		}
	}
}

func (p *OpenAQProvider) get(ctx context.Context, path string, values url.Values, into any) error {
	if p.apiKey == "" {
		return fmt.Errorf("openaq api key is not configured")
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		u := p.baseURL + path
		if len(values) > 0 {
			u = fmt.Sprintf("%s?%s", u, values.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-API-KEY", p.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := common.DoRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decoding openaq %s: %w", path, err)
	}
	return nil
}
