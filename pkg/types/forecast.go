package types

import "time"

// Recommendation is the suggested disposition of the power produced in an
// hour.
type Recommendation string

const (
	RecommendationFeedIn          Recommendation = "feed-in"
	RecommendationSelfConsumption Recommendation = "self-consumption"
)

// PVHistoryRecord is the representative production of one calendar day,
// built from every year in which that month/day was recorded.
type PVHistoryRecord struct {
	Key CalendarKey `json:"key"`
	// HourlyKW holds the hourly mean power of each matched day. Hours of a
	// matched day without any samples are 0.
	HourlyKW HourlySeries `json:"hourlyKW"`
	// Rows is the number of table rows that matched the key.
	Rows int `json:"rows"`
}

// ForecastPoint is one hour of the daily forecast.
type ForecastPoint struct {
	ISOTime        string          `json:"iso_time"`
	PVKW           float64         `json:"pv_kw"`
	PriceEURPerKWH *float64        `json:"price_eur_per_kwh"`
	Recommendation *Recommendation `json:"recommendation"`
}

// DailyForecastOutput is the result of a single pipeline run. It is keyed by
// RunDate in storage.
type DailyForecastOutput struct {
	RunDate      string          `json:"run_date"`
	PVHistoryDay string          `json:"pv_history_day"`
	Note         string          `json:"note"`
	Points       []ForecastPoint `json:"points"`
}

// ISOHour returns the key used for an hour in forecast points and price maps:
// the start of t's hour in t's location, formatted as RFC3339. The hour is
// truncated as an instant so both repeated hours of a fall-back day keep
// their own offset.
func ISOHour(t time.Time) string {
	return t.Truncate(time.Hour).In(t.Location()).Format(time.RFC3339)
}
