package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvcast/pvcast/pkg/types"
)

func hourly(day time.Time, startHour int, values ...float64) types.HourlySeries {
	s := make(types.HourlySeries, len(values))
	for i, v := range values {
		s[i] = types.Sample{TS: day.Add(time.Duration(startHour+i) * time.Hour), Value: v}
	}
	return s
}

func TestByHour(t *testing.T) {
	d1 := time.Date(2021, 7, 27, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2022, 7, 27, 0, 0, 0, 0, time.UTC)

	var s types.HourlySeries
	s = append(s, hourly(d1, 10, 2, 4, math.NaN())...)
	s = append(s, hourly(d2, 10, 4, math.NaN(), math.NaN())...)

	h := ByHour(s)
	assert.Equal(t, []int{10, 11, 12}, h.Hours())
	assert.Equal(t, 3.0, h[10])
	assert.Equal(t, 4.0, h[11])
	assert.True(t, math.IsNaN(h[12]))
}

func TestAlign(t *testing.T) {
	t.Run("intersection", func(t *testing.T) {
		pv := types.HourOfDaySeries{8: 1, 9: 2, 10: math.NaN()}
		proxy := types.HourOfDaySeries{9: 20, 10: 30, 11: 40}

		a, err := Align(pv, proxy)
		require.NoError(t, err)
		assert.Equal(t, []int{9, 10}, a.Hours)
		assert.Equal(t, []float64{2, 0}, a.PV)
		assert.Equal(t, []float64{20, 30}, a.Proxy)
	})

	t.Run("no overlap", func(t *testing.T) {
		pv := types.HourOfDaySeries{8: 1, 9: 2, 10: 3}
		proxy := types.HourOfDaySeries{14: 100, 15: 200}

		_, err := Align(pv, proxy)
		require.Error(t, err)
		assert.ErrorIs(t, err, types.ErrAlignment)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := Align(types.HourOfDaySeries{}, types.HourOfDaySeries{1: 1})
		assert.ErrorIs(t, err, types.ErrAlignment)
	})
}

func TestFitScale(t *testing.T) {
	tests := []struct {
		name  string
		pv    []float64
		proxy []float64
		want  float64
	}{
		{"degenerate pv", []float64{0, 0, 0}, []float64{5, 6, 7}, 0},
		{"degenerate proxy", []float64{1, 2, 3}, []float64{0, 0, 0}, 0},
		{"proportional", []float64{2, 4}, []float64{10, 20}, 0.2},
		{"negligible denominator", []float64{1}, []float64{1e-5}, 0},
		{"nan as zero", []float64{2, math.NaN()}, []float64{10, math.NaN()}, 0.2},
		{"length mismatch", []float64{1}, []float64{1, 2}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, FitScale(tt.pv, tt.proxy), 1e-12)
		})
	}

	t.Run("never negative", func(t *testing.T) {
		// pv peaks where the proxy is smallest, so the raw ratio is negative
		assert.Equal(t, 0.0, FitScale([]float64{1, -5}, []float64{0.1, 10}))
	})
}

func TestForecast(t *testing.T) {
	day := time.Date(2024, 7, 27, 0, 0, 0, 0, time.UTC)

	t.Run("proportional", func(t *testing.T) {
		a := FitAligned(Aligned{Hours: []int{9, 10}, PV: []float64{2, 4}, Proxy: []float64{10, 20}})
		out := Forecast(100, a, hourly(day, 12, 30))
		require.Len(t, out, 1)
		assert.InDelta(t, 6.0, out[0].Value, 1e-12)
		assert.Equal(t, day.Add(12*time.Hour), out[0].TS)
	})

	t.Run("clipped to capacity", func(t *testing.T) {
		out := Forecast(5, 10, hourly(day, 12, 1.0))
		assert.Equal(t, 5.0, out[0].Value)
	})

	t.Run("missing and negative", func(t *testing.T) {
		out := Forecast(5, 1, hourly(day, 0, math.NaN(), -3, 2))
		assert.Equal(t, []float64{0, 0, 2}, []float64{out[0].Value, out[1].Value, out[2].Value})
	})

	t.Run("bounds", func(t *testing.T) {
		out := Forecast(3.5, 0.7, hourly(day, 0, 0, 1, 2, 5, 10, 100, 1000))
		for _, smp := range out {
			assert.GreaterOrEqual(t, smp.Value, 0.0)
			assert.LessOrEqual(t, smp.Value, 3.5)
		}
	})
}

func TestRecommend(t *testing.T) {
	price := func(v float64) *float64 { return &v }

	rec := Recommend(0.6, price(0.20))
	require.NotNil(t, rec)
	assert.Equal(t, types.RecommendationFeedIn, *rec)

	rec = Recommend(0.4, price(0.25))
	require.NotNil(t, rec)
	assert.Equal(t, types.RecommendationSelfConsumption, *rec)

	rec = Recommend(0.6, price(0.19))
	require.NotNil(t, rec)
	assert.Equal(t, types.RecommendationSelfConsumption, *rec)

	rec = Recommend(0.5, price(0.30))
	require.NotNil(t, rec)
	assert.Equal(t, types.RecommendationSelfConsumption, *rec)

	assert.Nil(t, Recommend(0.6, nil))
}
