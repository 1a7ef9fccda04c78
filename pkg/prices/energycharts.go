package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/shopspring/decimal"

	"github.com/pvcast/pvcast/pkg/common"
	"github.com/pvcast/pvcast/pkg/log"
	"github.com/pvcast/pvcast/pkg/metrics"
	"github.com/pvcast/pvcast/pkg/types"
)

// ProviderEnergyCharts is the id of the Energy-Charts provider.
const ProviderEnergyCharts = "energycharts"

const (
	defaultEnergyChartsURL         = "https://api.energy-charts.info/price"
	defaultEnergyChartsBiddingZone = "AT"
)

// EnergyCharts implements Source with the keyless day-ahead price API of
// Energy-Charts (Fraunhofer ISE).
type EnergyCharts struct {
	apiURL      string
	biddingZone string
	client      *http.Client
}

func configuredEnergyCharts(m *metrics.Collector) *EnergyCharts {
	e := &EnergyCharts{
		client: common.HTTPClientWithTransport(25*time.Second, m.UpstreamTransport(ProviderEnergyCharts, nil)),
	}
	apiURL := lflag.String("energycharts-api-url", defaultEnergyChartsURL, "URL for the Energy-Charts price API")
	zone := lflag.String("energycharts-bidding-zone", defaultEnergyChartsBiddingZone, "Energy-Charts bidding zone (bzn)")

	lflag.Do(func() {
		e.apiURL = *apiURL
		e.biddingZone = *zone
	})
	return e
}

// NewEnergyCharts returns an EnergyCharts provider for the given bidding zone.
func NewEnergyCharts(apiURL, biddingZone string, client *http.Client) *EnergyCharts {
	if client == nil {
		client = common.HTTPClient(25 * time.Second)
	}
	return &EnergyCharts{apiURL: apiURL, biddingZone: biddingZone, client: client}
}

// Info implements Source.
func (e *EnergyCharts) Info() types.PriceProviderInfo {
	return types.PriceProviderInfo{
		ID:          ProviderEnergyCharts,
		Name:        "Energy-Charts",
		BiddingZone: e.biddingZone,
		Configured:  e.apiURL != "" && e.biddingZone != "",
	}
}

type energyChartsResponse struct {
	UnixSeconds []int64    `json:"unix_seconds"`
	Price       []*float64 `json:"price"`
	Unit        string     `json:"unit"`
}

// FetchDayAheadPrices implements Source.
func (e *EnergyCharts) FetchDayAheadPrices(ctx context.Context, day time.Time) ([]types.Price, error) {
	from, to := dayRange(day)

	u, err := url.Parse(e.apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse energy-charts url (%s): %w", e.apiURL, err)
	}
	q := u.Query()
	q.Set("bzn", e.biddingZone)
	q.Set("start", from.Format(time.RFC3339))
	q.Set("end", to.Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	log.Ctx(ctx).DebugContext(ctx, "fetching energy-charts prices", slog.String("url", u.String()))

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch energy-charts prices: %w", err)
	}
	defer resp.Body.Close()

	// energy-charts answers 404 when the day ahead auction has not run yet
	if resp.StatusCode == http.StatusNotFound {
		log.Ctx(ctx).WarnContext(ctx, "energy-charts has no prices for day", slog.Time("day", from))
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("energy-charts api returned status: %d", resp.StatusCode)
	}

	var data energyChartsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode energy-charts response: %w", err)
	}
	if len(data.UnixSeconds) != len(data.Price) {
		return nil, fmt.Errorf("energy-charts returned %d timestamps but %d prices", len(data.UnixSeconds), len(data.Price))
	}

	samples := make([]sample, 0, len(data.UnixSeconds))
	for i, sec := range data.UnixSeconds {
		if data.Price[i] == nil {
			continue
		}
		start := time.Unix(sec, 0)
		// the interval ends where the next one starts; the last one keeps
		// the previous spacing
		step := time.Hour
		if i+1 < len(data.UnixSeconds) {
			step = time.Duration(data.UnixSeconds[i+1]-sec) * time.Second
		} else if i > 0 {
			step = time.Duration(sec-data.UnixSeconds[i-1]) * time.Second
		}
		eurPerKWH := decimal.NewFromFloat(*data.Price[i]).Div(kwhPerMWh).InexactFloat64()
		samples = append(samples, sample{start: start, end: start.Add(step), eurPerKWH: eurPerKWH})
	}

	prices := hourlyAverage(ProviderEnergyCharts, samples, from, to)
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched energy-charts prices",
		slog.String("unit", data.Unit),
		slog.Int("samples", len(samples)),
		slog.Int("count", len(prices)),
	)
	return prices, nil
}
