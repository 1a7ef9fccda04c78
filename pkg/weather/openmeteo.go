package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/pvcast/pvcast/pkg/common"
	"github.com/pvcast/pvcast/pkg/log"
	"github.com/pvcast/pvcast/pkg/metrics"
	"github.com/pvcast/pvcast/pkg/types"
)

const (
	defaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"
	defaultVariable     = "shortwave_radiation"

	// hourly timestamps are local wall clock without an offset
	openMeteoTimeLayout = "2006-01-02T15:04"
)

// OpenMeteo implements Source using the Open-Meteo forecast API, which serves
// both recent past days and the forecast for the current day.
type OpenMeteo struct {
	apiURL   string
	variable string
	client   *http.Client
}

// Configured registers the Open-Meteo flags and returns the instance. Requests
// are timed by m under the "openmeteo" source.
func Configured(m *metrics.Collector) *OpenMeteo {
	o := &OpenMeteo{
		client: common.HTTPClientWithTransport(25*time.Second, m.UpstreamTransport("openmeteo", nil)),
	}
	apiURL := lflag.String("open-meteo-api-url", defaultOpenMeteoURL, "URL for the Open-Meteo forecast API")
	variable := lflag.String("weather-variable", defaultVariable, "Open-Meteo hourly variable used as the irradiance proxy")

	lflag.Do(func() {
		o.apiURL = *apiURL
		o.variable = *variable
	})

	return o
}

// NewOpenMeteo returns an OpenMeteo that requests variable from apiURL.
func NewOpenMeteo(apiURL, variable string, client *http.Client) *OpenMeteo {
	if client == nil {
		client = common.HTTPClient(25 * time.Second)
	}
	return &OpenMeteo{apiURL: apiURL, variable: variable, client: client}
}

// Validate ensures the configuration is valid.
func (o *OpenMeteo) Validate() error {
	if o.apiURL == "" {
		return fmt.Errorf("open-meteo-api-url is required")
	}
	if _, err := url.Parse(o.apiURL); err != nil {
		return fmt.Errorf("failed to parse open-meteo url (%s): %w", o.apiURL, err)
	}
	if o.variable == "" {
		return fmt.Errorf("weather-variable is required")
	}
	return nil
}

type openMeteoResponse struct {
	Error    bool                       `json:"error"`
	Reason   string                     `json:"reason"`
	Timezone string                     `json:"timezone"`
	Hourly   map[string]json.RawMessage `json:"hourly"`
}

// FetchHourly implements Source.
func (o *OpenMeteo) FetchHourly(ctx context.Context, req Request) (types.HourlySeries, error) {
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}

	u, err := url.Parse(o.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(req.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(req.Longitude, 'f', -1, 64))
	params.Set("hourly", o.variable)
	params.Set("timezone", loc.String())
	params.Set("start_date", types.DateString(req.Start.In(loc)))
	params.Set("end_date", types.DateString(req.End.In(loc)))
	u.RawQuery = params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "fetching weather from open-meteo", slog.String("url", u.String()))

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weather: %w", err)
	}
	defer resp.Body.Close()

	var data openMeteoResponse
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &data) == nil && data.Reason != "" {
			return nil, fmt.Errorf("open-meteo returned status %d: %s", resp.StatusCode, data.Reason)
		}
		return nil, fmt.Errorf("open-meteo returned status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode open-meteo response: %w", err)
	}
	if data.Error {
		return nil, fmt.Errorf("open-meteo error: %s", data.Reason)
	}

	var times []string
	if err := json.Unmarshal(data.Hourly["time"], &times); err != nil {
		return nil, fmt.Errorf("failed to decode open-meteo hourly time: %w", err)
	}
	var values []*float64
	if raw, ok := data.Hourly[o.variable]; ok {
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("failed to decode open-meteo hourly %s: %w", o.variable, err)
		}
	} else {
		return nil, fmt.Errorf("open-meteo response is missing hourly %s", o.variable)
	}

	series := make(types.HourlySeries, 0, len(times))
	for i, raw := range times {
		ts, err := time.ParseInLocation(openMeteoTimeLayout, raw, loc)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to parse open-meteo time", slog.String("value", raw), slog.Any("error", err))
			continue
		}
		v := math.NaN()
		if i < len(values) && values[i] != nil {
			v = *values[i]
		}
		series = append(series, types.Sample{TS: ts, Value: v})
	}
	series.Sort()

	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched weather",
		slog.String("variable", o.variable),
		slog.Int("count", len(series)),
		slog.String("timezone", data.Timezone),
	)

	return series, nil
}
