// Package pipeline runs the daily PV forecast: it picks the historical day
// matching yesterday, fits it against yesterday's irradiance and applies the
// fit to today's irradiance forecast.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/levenlabs/go-lflag"

	"github.com/pvcast/pvcast/pkg/history"
	"github.com/pvcast/pvcast/pkg/log"
	"github.com/pvcast/pvcast/pkg/metrics"
	"github.com/pvcast/pvcast/pkg/model"
	"github.com/pvcast/pvcast/pkg/prices"
	"github.com/pvcast/pvcast/pkg/storage"
	"github.com/pvcast/pvcast/pkg/types"
	"github.com/pvcast/pvcast/pkg/weather"
)

// Note is stored with every output to explain how it was produced.
const Note = "Year in PV history is ignored. Matching is done by month/day only. Model is a simple scale fit from the previous day."

// Config is the site configuration a Pipeline runs with.
type Config struct {
	Location    *time.Location
	Latitude    float64
	Longitude   float64
	CapacityKW  float64
	HistoryPath string
	ValueColumn string
}

// Validate ensures the configuration is usable.
func (c Config) Validate() error {
	if c.Location == nil {
		return fmt.Errorf("timezone is required")
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude out of range: %v", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude out of range: %v", c.Longitude)
	}
	if !(c.CapacityKW > 0) {
		return fmt.Errorf("pv-capacity-kw must be positive: %v", c.CapacityKW)
	}
	if c.HistoryPath == "" {
		return fmt.Errorf("pv-history-path is required")
	}
	if c.ValueColumn == "" {
		return fmt.Errorf("pv-value-column is required")
	}
	return nil
}

// HistoryLoader loads the PV production of a calendar day from the history
// table at path.
type HistoryLoader interface {
	LoadDay(ctx context.Context, path string, key types.CalendarKey) (types.PVHistoryRecord, error)
}

// Pipeline produces and stores DailyForecastOutputs. It keeps no state
// between runs, so concurrent runs are independent and the last save wins.
type Pipeline struct {
	cfg     Config
	history HistoryLoader
	weather weather.Source
	prices  prices.Source
	storage storage.Database
	metrics *metrics.Collector

	now func() time.Time
}

// New returns a Pipeline. A nil price source means no prices and a nil
// metrics collector records nothing.
func New(cfg Config, h HistoryLoader, w weather.Source, p prices.Source, db storage.Database, m *metrics.Collector) *Pipeline {
	if p == nil {
		p = prices.None{}
	}
	return &Pipeline{
		cfg:     cfg,
		history: h,
		weather: w,
		prices:  p,
		storage: db,
		metrics: m,
		now:     time.Now,
	}
}

// Configured registers the site flags and returns a Pipeline reading the PV
// history with a history.Loader.
func Configured(w weather.Source, ps prices.Source, db storage.Database, m *metrics.Collector) *Pipeline {
	p := New(Config{}, nil, w, ps, db, m)

	timezone := lflag.String("timezone", "Europe/Vienna", "IANA timezone of the site")
	latitude := lflag.String("latitude", "47.797777777778", "Latitude of the site")
	longitude := lflag.String("longitude", "16.296666666667", "Longitude of the site")
	capacity := lflag.String("pv-capacity-kw", "5.0", "Installed PV capacity in kW, forecasts are clipped to it")
	historyPath := lflag.String("pv-history-path", "./input_data/production.csv", "Path of the semicolon separated PV history table")
	valueColumn := lflag.String("pv-value-column", "AT0090000000000000000X312X009800E", "Column of the PV history table holding the power in kW")

	lflag.Do(func() {
		loc, err := time.LoadLocation(*timezone)
		if err != nil {
			panic(fmt.Sprintf("failed to load timezone (%s): %v", *timezone, err))
		}
		p.cfg = Config{
			Location:    loc,
			Latitude:    mustParseFloat("latitude", *latitude),
			Longitude:   mustParseFloat("longitude", *longitude),
			CapacityKW:  mustParseFloat("pv-capacity-kw", *capacity),
			HistoryPath: *historyPath,
			ValueColumn: *valueColumn,
		}
		if err := p.cfg.Validate(); err != nil {
			panic(fmt.Sprintf("pipeline validation failed: %v", err))
		}
		p.history = history.Loader{ValueColumn: p.cfg.ValueColumn, Location: loc}
	})

	return p
}

func mustParseFloat(name, raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		panic(fmt.Sprintf("invalid %s (%s): %v", name, raw, err))
	}
	return v
}

// Location returns the site's timezone.
func (p *Pipeline) Location() *time.Location {
	return p.cfg.Location
}

// Today returns midnight of the current date in the site's timezone.
func (p *Pipeline) Today() time.Time {
	return types.TruncateDay(p.now().In(p.cfg.Location))
}

// ParseRunDate parses a YYYY-MM-DD date in the site's timezone. An empty
// string is Today.
func (p *Pipeline) ParseRunDate(raw string) (time.Time, error) {
	if raw == "" {
		return p.Today(), nil
	}
	d, err := time.ParseInLocation(time.DateOnly, raw, p.cfg.Location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date (%s), expected YYYY-MM-DD: %w", raw, err)
	}
	return d, nil
}

// Run forecasts runDate, whose calendar date is taken as is, and saves the
// output under that date. Nothing is saved when any step fails.
func (p *Pipeline) Run(ctx context.Context, runDate time.Time) (out types.DailyForecastOutput, err error) {
	started := time.Now()
	runID := uuid.NewString()
	ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("runID", runID)))
	defer func() {
		result := metrics.ResultSuccess
		if err != nil {
			result = types.KindOf(err).String()
			log.Ctx(ctx).ErrorContext(ctx, "pipeline run failed", slog.Any("error", err))
		}
		p.metrics.RecordRun(result, time.Since(started))
	}()

	loc := p.cfg.Location
	runDay := time.Date(runDate.Year(), runDate.Month(), runDate.Day(), 0, 0, 0, 0, loc)
	refDay := runDay.AddDate(0, 0, -1)
	key := types.CalendarKeyFromDate(refDay)
	log.Ctx(ctx).InfoContext(
		ctx,
		"starting pipeline run",
		slog.String("runDate", types.DateString(runDay)),
		slog.String("pvHistoryDay", types.DateString(refDay)),
		slog.String("key", key.String()),
	)

	hist, err := p.history.LoadDay(ctx, p.cfg.HistoryPath, key)
	if err != nil {
		return types.DailyForecastOutput{}, err
	}

	irradiance, err := p.weather.FetchHourly(ctx, weather.Request{
		Latitude:  p.cfg.Latitude,
		Longitude: p.cfg.Longitude,
		Location:  loc,
		Start:     refDay,
		End:       runDay,
	})
	if err != nil {
		return types.DailyForecastOutput{}, fmt.Errorf("failed to fetch weather: %w", err)
	}

	dates := irradiance.Dates()
	if len(dates) < 2 {
		return types.DailyForecastOutput{}, types.NewError(
			types.ErrorKindInsufficientData,
			"weather returned %d distinct dates, need %s and %s",
			len(dates),
			types.DateString(refDay),
			types.DateString(runDay),
		)
	}
	yesterday := irradiance.OnDate(refDay)
	today := irradiance.OnDate(runDay)
	if len(yesterday) == 0 || len(today) == 0 {
		available := make([]string, len(dates))
		for i, d := range dates {
			available[i] = types.DateString(d)
		}
		return types.DailyForecastOutput{}, types.NewError(
			types.ErrorKindInsufficientData,
			"weather does not cover %s and %s (available: %v)",
			types.DateString(refDay),
			types.DateString(runDay),
			available,
		)
	}

	aligned, err := model.Align(model.ByHour(hist.HourlyKW), model.ByHour(yesterday))
	if err != nil {
		return types.DailyForecastOutput{}, err
	}
	a := model.FitAligned(aligned)
	forecast := model.Forecast(p.cfg.CapacityKW, a, today)
	log.Ctx(ctx).DebugContext(
		ctx,
		"fitted scale",
		slog.Float64("coefficient", a),
		slog.Int("hours", len(aligned.Hours)),
		slog.Int("historyRows", hist.Rows),
	)

	dayPrices, err := p.prices.FetchDayAheadPrices(ctx, runDay)
	if err != nil {
		return types.DailyForecastOutput{}, fmt.Errorf("failed to fetch prices: %w", err)
	}
	priceMap := make(map[string]float64, len(dayPrices))
	for _, pr := range dayPrices {
		priceMap[types.ISOHour(pr.TSStart.In(loc))] = pr.EURPerKWH
	}

	points := make([]types.ForecastPoint, 0, len(forecast))
	for _, smp := range forecast {
		pt := types.ForecastPoint{
			ISOTime: types.ISOHour(smp.TS),
			PVKW:    smp.Value,
		}
		if price, ok := priceMap[pt.ISOTime]; ok {
			pt.PriceEURPerKWH = &price
			pt.Recommendation = model.Recommend(pt.PVKW, pt.PriceEURPerKWH)
		}
		points = append(points, pt)
	}

	out = types.DailyForecastOutput{
		RunDate:      types.DateString(runDay),
		PVHistoryDay: types.DateString(refDay),
		Note:         Note,
		Points:       points,
	}
	if err := p.storage.SaveForecast(ctx, runDay, out); err != nil {
		return types.DailyForecastOutput{}, fmt.Errorf("failed to save forecast: %w", err)
	}

	peak := forecast.Max()
	if math.IsNaN(peak) {
		peak = 0
	}
	p.metrics.RecordForecast(a, peak)
	log.Ctx(ctx).InfoContext(
		ctx,
		"finished pipeline run",
		slog.Float64("coefficient", a),
		slog.Float64("peakKW", peak),
		slog.Int("points", len(points)),
		slog.Int("prices", len(priceMap)),
	)
	return out, nil
}
