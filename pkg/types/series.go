package types

import (
	"math"
	"sort"
	"time"
)

// Sample is a single measurement at a point in time. A missing measurement
// is stored as NaN.
type Sample struct {
	TS    time.Time `json:"ts"`
	Value float64   `json:"value"`
}

// HourlySeries is a timestamp-indexed series with strictly increasing
// timestamps. It carries both PV power (kW) and irradiance.
type HourlySeries []Sample

// Sort orders the series by timestamp.
func (s HourlySeries) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].TS.Before(s[j].TS)
	})
}

// Dates returns the distinct calendar dates (midnight in each sample's
// location) contained in the series, oldest first.
func (s HourlySeries) Dates() []time.Time {
	seen := make(map[string]bool)
	var dates []time.Time
	for _, smp := range s {
		d := TruncateDay(smp.TS)
		key := DateString(d)
		if seen[key] {
			continue
		}
		seen[key] = true
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})
	return dates
}

// OnDate returns the samples whose timestamp falls on the same calendar date
// as day.
func (s HourlySeries) OnDate(day time.Time) HourlySeries {
	want := DateString(day)
	var out HourlySeries
	for _, smp := range s {
		if DateString(smp.TS) == want {
			out = append(out, smp)
		}
	}
	return out
}

// Max returns the largest non-NaN value, or NaN if there is none.
func (s HourlySeries) Max() float64 {
	m := math.NaN()
	for _, smp := range s {
		if math.IsNaN(smp.Value) {
			continue
		}
		if math.IsNaN(m) || smp.Value > m {
			m = smp.Value
		}
	}
	return m
}

// HourOfDaySeries maps an hour of the day (0-23) to a value. It is used when
// two series recorded in different years have to be compared.
type HourOfDaySeries map[int]float64

// Hours returns the series' hours in ascending order.
func (h HourOfDaySeries) Hours() []int {
	hours := make([]int, 0, len(h))
	for hr := range h {
		hours = append(hours, hr)
	}
	sort.Ints(hours)
	return hours
}
