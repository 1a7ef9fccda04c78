// Package model holds the forecasting math: hour-of-day alignment of two
// hourly series, the proportional scale fit, the capacity-clipped forecast
// and the price based recommendation.
package model

import (
	"math"

	"github.com/pvcast/pvcast/pkg/types"
)

// ByHour reduces a series to the mean value of each hour of the day. NaN
// samples are skipped; an hour with only NaN samples maps to NaN.
func ByHour(s types.HourlySeries) types.HourOfDaySeries {
	var sum [24]float64
	var count [24]int
	var seen [24]bool
	for _, smp := range s {
		h := smp.TS.Hour()
		seen[h] = true
		if math.IsNaN(smp.Value) {
			continue
		}
		sum[h] += smp.Value
		count[h]++
	}

	out := make(types.HourOfDaySeries)
	for h := 0; h < 24; h++ {
		if !seen[h] {
			continue
		}
		if count[h] == 0 {
			out[h] = math.NaN()
			continue
		}
		out[h] = sum[h] / float64(count[h])
	}
	return out
}

// Aligned holds two hour-of-day series reduced to the hours they share.
// PV[i] and Proxy[i] belong to Hours[i].
type Aligned struct {
	Hours []int
	PV    []float64
	Proxy []float64
}

// Align intersects the hours of pv and proxy. Hours present in only one of
// them are dropped. NaN values in the shared hours become 0.
func Align(pv, proxy types.HourOfDaySeries) (Aligned, error) {
	var a Aligned
	for _, h := range pv.Hours() {
		x, ok := proxy[h]
		if !ok {
			continue
		}
		a.Hours = append(a.Hours, h)
		a.PV = append(a.PV, zeroNaN(pv[h]))
		a.Proxy = append(a.Proxy, zeroNaN(x))
	}
	if len(a.Hours) == 0 {
		return Aligned{}, types.NewError(
			types.ErrorKindAlignment,
			"no overlapping hours between pv history (%v) and weather (%v)",
			pv.Hours(),
			proxy.Hours(),
		)
	}
	return a, nil
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
