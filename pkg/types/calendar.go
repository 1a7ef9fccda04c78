package types

import (
	"fmt"
	"time"
)

// CalendarKey identifies a day of the year independent of the year it was
// recorded in. It is comparable with == and usable as a map key.
type CalendarKey struct {
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// CalendarKeyFromDate discards the year (and time of day) of t.
// Feb 29 is kept as is and only matches other leap days.
func CalendarKeyFromDate(t time.Time) CalendarKey {
	return CalendarKey{Month: t.Month(), Day: t.Day()}
}

// Matches returns true if t falls on the key's month and day in t's location.
func (k CalendarKey) Matches(t time.Time) bool {
	return t.Month() == k.Month && t.Day() == k.Day
}

func (k CalendarKey) String() string {
	return fmt.Sprintf("%02d-%02d", int(k.Month), k.Day)
}

// TruncateDay returns midnight of t's day in t's location.
func TruncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DateString formats t as YYYY-MM-DD.
func DateString(t time.Time) string {
	return t.Format(time.DateOnly)
}
