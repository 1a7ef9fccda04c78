// Package prices provides optional day-ahead electricity prices used to
// label forecast hours.
package prices

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/pvcast/pvcast/pkg/metrics"
	"github.com/pvcast/pvcast/pkg/types"
)

// Source supplies day-ahead prices.
type Source interface {
	// FetchDayAheadPrices returns hourly prices covering day, which is
	// midnight in the site's location. It returns nil, nil when prices are
	// unavailable, for example when the provider is not configured.
	FetchDayAheadPrices(ctx context.Context, day time.Time) ([]types.Price, error)

	// Info describes the provider.
	Info() types.PriceProviderInfo
}

// ProviderNone is the id of the provider that never returns prices.
const ProviderNone = "none"

// None is a Source without prices.
type None struct{}

// FetchDayAheadPrices implements Source.
func (None) FetchDayAheadPrices(context.Context, time.Time) ([]types.Price, error) {
	return nil, nil
}

// Info implements Source.
func (None) Info() types.PriceProviderInfo {
	return types.PriceProviderInfo{ID: ProviderNone, Name: "No prices", Configured: true}
}

// Configured registers the price flags and every supported provider and
// returns a Map. Upstream requests are timed by m.
func Configured(m *metrics.Collector) *Map {
	pm := NewMap()
	pm.SetProvider(ProviderNone, None{})
	pm.SetProvider(ProviderENTSOE, configuredENTSOE(m))
	pm.SetProvider(ProviderEnergyCharts, configuredEnergyCharts(m))

	selected := lflag.String("price-provider", ProviderNone, "Day-ahead price provider (none, entsoe, energycharts)")
	lflag.Do(func() {
		pm.mustSelect(*selected)
	})
	return pm
}

// mustSelect selects name and panics if no provider is registered for it.
func (m *Map) mustSelect(name string) {
	if _, err := m.Provider(name); err != nil {
		panic(err.Error())
	}
	m.Select(name)
}

// Map manages the price providers and the one selected for the pipeline.
type Map struct {
	mu        sync.Mutex
	selected  string
	providers map[string]Source
}

// NewMap creates a new Map with the none provider selected.
func NewMap() *Map {
	return &Map{
		selected:  ProviderNone,
		providers: make(map[string]Source),
	}
}

// Select sets the provider returned by Selected.
func (m *Map) Select(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = name
}

// Selected returns the selected provider.
func (m *Map) Selected() (Source, error) {
	m.mu.Lock()
	name := m.selected
	m.mu.Unlock()
	return m.Provider(name)
}

// Provider returns the provider for the given name.
func (m *Map) Provider(name string) (Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == "" || name == ProviderNone {
		if p, ok := m.providers[ProviderNone]; ok {
			return p, nil
		}
		return None{}, nil
	}
	if p, ok := m.providers[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown price provider: %s", name)
}

// SetProvider sets the provider for the given name. This is primarily used for testing.
func (m *Map) SetProvider(name string, provider Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = provider
}

// FetchDayAheadPrices implements Source with the selected provider.
func (m *Map) FetchDayAheadPrices(ctx context.Context, day time.Time) ([]types.Price, error) {
	p, err := m.Selected()
	if err != nil {
		return nil, err
	}
	return p.FetchDayAheadPrices(ctx, day)
}

// Info implements Source with the selected provider.
func (m *Map) Info() types.PriceProviderInfo {
	p, err := m.Selected()
	if err != nil {
		return types.PriceProviderInfo{}
	}
	return p.Info()
}

// List returns the metadata of every registered provider sorted by id.
func (m *Map) List() []types.PriceProviderInfo {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]types.PriceProviderInfo, 0, len(m.providers))
	for _, p := range m.providers {
		infos = append(infos, p.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// sample is a single upstream price interval.
type sample struct {
	start     time.Time
	end       time.Time
	eurPerKWH float64
}

// hourlyAverage groups samples into absolute hours shown in loc, averaging the prices
// of each hour. Samples outside [from, to) are dropped.
func hourlyAverage(provider string, samples []sample, from, to time.Time) []types.Price {
	loc := from.Location()
	type hourlyData struct {
		start time.Time
		end   time.Time
		sum   float64
		count int
	}
	hours := make(map[int64]*hourlyData) // keyed by unix hour start

	for _, s := range samples {
		if s.start.Before(from) || !s.start.Before(to) {
			continue
		}
		hourStart := s.start.Truncate(time.Hour).In(loc)
		key := hourStart.Unix()
		h, ok := hours[key]
		if !ok {
			h = &hourlyData{start: hourStart}
			hours[key] = h
		}
		h.sum += s.eurPerKWH
		h.count++
		if s.end.After(h.end) {
			h.end = s.end
		}
	}

	prices := make([]types.Price, 0, len(hours))
	for _, h := range hours {
		prices = append(prices, types.Price{
			Provider:    provider,
			TSStart:     h.start,
			TSEnd:       h.end.In(loc),
			EURPerKWH:   h.sum / float64(h.count),
			SampleCount: h.count,
		})
	}
	sort.Slice(prices, func(i, j int) bool {
		return prices[i].TSStart.Before(prices[j].TSStart)
	})
	return prices
}

// dayRange returns midnight of day and of the following day in day's location.
func dayRange(day time.Time) (time.Time, time.Time) {
	start := types.TruncateDay(day)
	return start, start.AddDate(0, 0, 1)
}
