package storagemock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pvcast/pvcast/pkg/storage"
	"github.com/pvcast/pvcast/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) SaveForecast(ctx context.Context, day time.Time, output types.DailyForecastOutput) error {
	args := m.Called(ctx, day, output)
	return args.Error(0)
}

func (m *MockDatabase) GetForecast(ctx context.Context, day time.Time) (types.DailyForecastOutput, error) {
	args := m.Called(ctx, day)
	if len(args) > 0 {
		return args.Get(0).(types.DailyForecastOutput), args.Error(1)
	}
	return types.DailyForecastOutput{}, storage.ErrForecastNotFound
}

func (m *MockDatabase) GetLatestForecast(ctx context.Context) (types.DailyForecastOutput, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).(types.DailyForecastOutput), args.Error(1)
	}
	return types.DailyForecastOutput{}, storage.ErrForecastNotFound
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	if len(args) > 0 {
		return args.Error(0)
	}
	return nil
}
