package server

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pvcast/pvcast/pkg/metrics"
	"github.com/pvcast/pvcast/pkg/prices"
	"github.com/pvcast/pvcast/pkg/storage/storagemock"
	"github.com/pvcast/pvcast/pkg/types"
)

type mockForecaster struct {
	mock.Mock
	loc   *time.Location
	today time.Time
}

func (m *mockForecaster) Run(ctx context.Context, runDate time.Time) (types.DailyForecastOutput, error) {
	args := m.Called(ctx, runDate)
	return args.Get(0).(types.DailyForecastOutput), args.Error(1)
}

func (m *mockForecaster) ParseRunDate(raw string) (time.Time, error) {
	if raw == "" {
		return m.today, nil
	}
	return time.ParseInLocation(time.DateOnly, raw, m.loc)
}

func (m *mockForecaster) Today() time.Time {
	return m.today
}

type stubPrices struct {
	info   types.PriceProviderInfo
	prices []types.Price
	err    error
}

func (s stubPrices) FetchDayAheadPrices(context.Context, time.Time) ([]types.Price, error) {
	return s.prices, s.err
}

func (s stubPrices) Info() types.PriceProviderInfo {
	return s.info
}

func mustVienna() *time.Location {
	loc, err := time.LoadLocation("Europe/Vienna")
	if err != nil {
		panic(err)
	}
	return loc
}

func newTestServer() (*Server, *mockForecaster, *storagemock.MockDatabase) {
	loc := mustVienna()
	f := &mockForecaster{
		loc:   loc,
		today: time.Date(2024, 7, 27, 0, 0, 0, 0, loc),
	}
	db := &storagemock.MockDatabase{}
	pm := prices.NewMap()
	pm.SetProvider(prices.ProviderNone, prices.None{})
	srv := &Server{
		pipeline:   f,
		prices:     pm,
		storage:    db,
		metrics:    metrics.New(),
		serverName: "pvcast",
	}
	return srv, f, db
}

func sampleOutput(runDate string) types.DailyForecastOutput {
	price := 0.25
	rec := types.RecommendationFeedIn
	return types.DailyForecastOutput{
		RunDate:      runDate,
		PVHistoryDay: "2024-07-26",
		Note:         "test",
		Points: []types.ForecastPoint{
			{ISOTime: runDate + "T10:00:00+02:00", PVKW: 5, PriceEURPerKWH: &price, Recommendation: &rec},
			{ISOTime: runDate + "T11:00:00+02:00", PVKW: 1},
		},
	}
}
