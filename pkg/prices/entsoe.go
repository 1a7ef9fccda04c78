package prices

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/shopspring/decimal"

	"github.com/pvcast/pvcast/pkg/common"
	"github.com/pvcast/pvcast/pkg/log"
	"github.com/pvcast/pvcast/pkg/metrics"
	"github.com/pvcast/pvcast/pkg/types"
)

// ProviderENTSOE is the id of the ENTSO-E transparency platform provider.
const ProviderENTSOE = "entsoe"

const (
	defaultENTSOEURL         = "https://web-api.tp.entsoe.eu/api"
	defaultENTSOEBiddingZone = "10YAT-APG------L"

	entsoePeriodLayout = "200601021504"
	entsoeTimeLayout   = "2006-01-02T15:04Z07:00"
)

var kwhPerMWh = decimal.NewFromInt(1000)

// ENTSOE implements Source with the day-ahead prices (document type A44) of
// the ENTSO-E transparency platform.
type ENTSOE struct {
	apiURL      string
	apiKey      string
	biddingZone string
	client      *http.Client
}

func configuredENTSOE(m *metrics.Collector) *ENTSOE {
	e := &ENTSOE{
		client: common.HTTPClientWithTransport(25*time.Second, m.UpstreamTransport(ProviderENTSOE, nil)),
	}
	apiURL := lflag.String("entsoe-api-url", defaultENTSOEURL, "URL for the ENTSO-E transparency platform API")
	apiKey := lflag.String("entsoe-api-key", "", "Security token for the ENTSO-E API (optional, no prices without it)")
	zone := lflag.String("entsoe-bidding-zone", defaultENTSOEBiddingZone, "ENTSO-E EIC code of the bidding zone")

	lflag.Do(func() {
		e.apiURL = *apiURL
		e.apiKey = strings.TrimSpace(*apiKey)
		e.biddingZone = *zone
	})
	return e
}

// NewENTSOE returns an ENTSOE provider for the given bidding zone.
func NewENTSOE(apiURL, apiKey, biddingZone string, client *http.Client) *ENTSOE {
	if client == nil {
		client = common.HTTPClient(25 * time.Second)
	}
	return &ENTSOE{
		apiURL:      apiURL,
		apiKey:      strings.TrimSpace(apiKey),
		biddingZone: biddingZone,
		client:      client,
	}
}

// Info implements Source.
func (e *ENTSOE) Info() types.PriceProviderInfo {
	return types.PriceProviderInfo{
		ID:          ProviderENTSOE,
		Name:        "ENTSO-E Transparency Platform",
		BiddingZone: e.biddingZone,
		Configured:  e.apiKey != "",
	}
}

type entsoeDocument struct {
	XMLName    xml.Name
	TimeSeries []entsoeTimeSeries `xml:"TimeSeries"`
	Reasons    []entsoeReason     `xml:"Reason"`
}

type entsoeReason struct {
	Code string `xml:"code"`
	Text string `xml:"text"`
}

type entsoeTimeSeries struct {
	Currency  string         `xml:"currency_Unit.name"`
	Unit      string         `xml:"price_Measure_Unit.name"`
	CurveType string         `xml:"curveType"`
	Periods   []entsoePeriod `xml:"Period"`
}

type entsoePeriod struct {
	Start      string        `xml:"timeInterval>start"`
	End        string        `xml:"timeInterval>end"`
	Resolution string        `xml:"resolution"`
	Points     []entsoePoint `xml:"Point"`
}

type entsoePoint struct {
	Position int    `xml:"position"`
	Amount   string `xml:"price.amount"`
}

// FetchDayAheadPrices implements Source. Without an API key it returns no
// prices.
func (e *ENTSOE) FetchDayAheadPrices(ctx context.Context, day time.Time) ([]types.Price, error) {
	if e.apiKey == "" {
		log.Ctx(ctx).DebugContext(ctx, "entsoe api key not set, skipping prices")
		return nil, nil
	}
	from, to := dayRange(day)

	u, err := url.Parse(e.apiURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entsoe url (%s): %w", e.apiURL, err)
	}
	q := u.Query()
	q.Set("securityToken", e.apiKey)
	q.Set("documentType", "A44")
	q.Set("in_Domain", e.biddingZone)
	q.Set("out_Domain", e.biddingZone)
	q.Set("periodStart", from.UTC().Format(entsoePeriodLayout))
	q.Set("periodEnd", to.UTC().Format(entsoePeriodLayout))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetching entsoe day ahead prices",
		slog.String("biddingZone", e.biddingZone),
		slog.Time("start", from),
		slog.Time("end", to),
	)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch entsoe prices: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read entsoe response: %w", err)
	}

	var doc entsoeDocument
	decodeErr := xml.Unmarshal(body, &doc)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && len(doc.Reasons) > 0 {
			return nil, fmt.Errorf("entsoe api returned status %d: %s", resp.StatusCode, doc.Reasons[0].Text)
		}
		return nil, fmt.Errorf("entsoe api returned status: %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode entsoe response: %w", decodeErr)
	}

	// an acknowledgement document means there is no data for the period
	if doc.XMLName.Local == "Acknowledgement_MarketDocument" {
		var reason string
		if len(doc.Reasons) > 0 {
			reason = doc.Reasons[0].Text
		}
		log.Ctx(ctx).WarnContext(ctx, "entsoe returned no day ahead prices", slog.String("reason", reason))
		return nil, nil
	}

	samples, err := parseENTSOESeries(doc.TimeSeries)
	if err != nil {
		return nil, err
	}
	prices := hourlyAverage(ProviderENTSOE, samples, from, to)

	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched entsoe prices",
		slog.Int("samples", len(samples)),
		slog.Int("count", len(prices)),
	)
	return prices, nil
}

// parseENTSOESeries expands the periods into price samples. Hourly series
// are preferred when the document also carries finer ones. Positions that
// are left out of an A03 curve repeat the previous price.
func parseENTSOESeries(series []entsoeTimeSeries) ([]sample, error) {
	hasHourly := false
	for _, ts := range series {
		for _, p := range ts.Periods {
			if p.Resolution == "PT60M" {
				hasHourly = true
			}
		}
	}

	var samples []sample
	for _, ts := range series {
		if ts.Currency != "" && ts.Currency != "EUR" {
			return nil, fmt.Errorf("unsupported entsoe currency: %s", ts.Currency)
		}
		for _, p := range ts.Periods {
			if hasHourly && p.Resolution != "PT60M" {
				continue
			}
			res, err := parseResolution(p.Resolution)
			if err != nil {
				return nil, err
			}
			start, err := time.Parse(entsoeTimeLayout, p.Start)
			if err != nil {
				return nil, fmt.Errorf("failed to parse entsoe period start (%s): %w", p.Start, err)
			}
			end, err := time.Parse(entsoeTimeLayout, p.End)
			if err != nil {
				return nil, fmt.Errorf("failed to parse entsoe period end (%s): %w", p.End, err)
			}

			byPosition := make(map[int]float64, len(p.Points))
			for _, pt := range p.Points {
				d, err := decimal.NewFromString(strings.TrimSpace(pt.Amount))
				if err != nil {
					return nil, fmt.Errorf("failed to parse entsoe price (%s): %w", pt.Amount, err)
				}
				byPosition[pt.Position] = d.Div(kwhPerMWh).InexactFloat64()
			}

			n := int(end.Sub(start) / res)
			var last float64
			var haveLast bool
			for pos := 1; pos <= n; pos++ {
				v, ok := byPosition[pos]
				if !ok {
					if !haveLast {
						continue
					}
					v = last
				}
				last, haveLast = v, true
				s := start.Add(time.Duration(pos-1) * res)
				samples = append(samples, sample{start: s, end: s.Add(res), eurPerKWH: v})
			}
		}
	}
	return samples, nil
}

// parseResolution parses the ISO 8601 durations used by ENTSO-E, such as
// PT15M and PT60M.
func parseResolution(raw string) (time.Duration, error) {
	if !strings.HasPrefix(raw, "PT") || len(raw) < 4 {
		return 0, fmt.Errorf("unsupported entsoe resolution: %q", raw)
	}
	n, err := strconv.Atoi(raw[2 : len(raw)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("unsupported entsoe resolution: %q", raw)
	}
	switch raw[len(raw)-1] {
	case 'M':
		return time.Duration(n) * time.Minute, nil
	case 'H':
		return time.Duration(n) * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported entsoe resolution: %q", raw)
	}
}
