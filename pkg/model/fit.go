package model

import (
	"math"

	"github.com/pvcast/pvcast/pkg/types"
)

// minDenominator is the smallest dot(proxy, proxy) that is still divided by.
const minDenominator = 1e-9

// FitScale returns the non-negative least squares coefficient a for
// pv ≈ a * proxy, computed as dot(proxy, pv) / dot(proxy, proxy). It returns 0
// for a degenerate day (either series never rises above 0) or when the
// denominator is negligible. Both slices must have the same length; NaN is
// treated as 0.
func FitScale(pv, proxy []float64) float64 {
	if len(pv) != len(proxy) || len(pv) == 0 {
		return 0
	}
	if maxOf(pv) <= 0 || maxOf(proxy) <= 0 {
		return 0
	}

	var num, denom float64
	for i := range pv {
		x := zeroNaN(proxy[i])
		num += x * zeroNaN(pv[i])
		denom += x * x
	}
	if denom <= minDenominator {
		return 0
	}
	return math.Max(0, num/denom)
}

// FitAligned fits the coefficient on an aligned pair.
func FitAligned(a Aligned) float64 {
	return FitScale(a.PV, a.Proxy)
}

func maxOf(vs []float64) float64 {
	m := math.Inf(-1)
	for _, v := range vs {
		v = zeroNaN(v)
		if v > m {
			m = v
		}
	}
	return m
}

// Forecast converts an irradiance series into PV power:
// clip(a * irradiance, 0, capacityKW). Missing irradiance yields 0. The
// returned series has the same timestamps as irradiance.
func Forecast(capacityKW, a float64, irradiance types.HourlySeries) types.HourlySeries {
	out := make(types.HourlySeries, len(irradiance))
	for i, smp := range irradiance {
		out[i] = types.Sample{TS: smp.TS, Value: clip(a*smp.Value, capacityKW)}
	}
	return out
}

func clip(v, capacityKW float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > capacityKW {
		return capacityKW
	}
	return v
}
