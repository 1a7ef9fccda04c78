package types

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarKey(t *testing.T) {
	t.Run("year agnostic", func(t *testing.T) {
		a := CalendarKeyFromDate(time.Date(2021, 7, 27, 13, 0, 0, 0, time.UTC))
		b := CalendarKeyFromDate(time.Date(2023, 7, 27, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, a, b)
		assert.Equal(t, CalendarKey{Month: time.July, Day: 27}, a)
		assert.Equal(t, "07-27", a.String())
	})

	t.Run("matches", func(t *testing.T) {
		k := CalendarKey{Month: time.July, Day: 27}
		assert.True(t, k.Matches(time.Date(1999, 7, 27, 23, 59, 0, 0, time.UTC)))
		assert.False(t, k.Matches(time.Date(2023, 7, 28, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("leap day only matches leap day", func(t *testing.T) {
		k := CalendarKeyFromDate(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))
		assert.True(t, k.Matches(time.Date(2020, 2, 29, 12, 0, 0, 0, time.UTC)))
		assert.False(t, k.Matches(time.Date(2023, 2, 28, 12, 0, 0, 0, time.UTC)))
	})
}

func TestHourlySeries(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Vienna")
	require.NoError(t, err)

	s := HourlySeries{
		{TS: time.Date(2024, 7, 28, 1, 0, 0, 0, loc), Value: 3},
		{TS: time.Date(2024, 7, 27, 23, 0, 0, 0, loc), Value: math.NaN()},
		{TS: time.Date(2024, 7, 27, 22, 0, 0, 0, loc), Value: 1},
	}
	s.Sort()
	assert.Equal(t, 22, s[0].TS.Hour())

	dates := s.Dates()
	require.Len(t, dates, 2)
	assert.Equal(t, "2024-07-27", DateString(dates[0]))
	assert.Equal(t, "2024-07-28", DateString(dates[1]))

	assert.Len(t, s.OnDate(dates[0]), 2)
	assert.Len(t, s.OnDate(dates[1]), 1)
	assert.Equal(t, 3.0, s.Max())
	assert.True(t, math.IsNaN(HourlySeries{}.Max()))
}

func TestHourOfDaySeriesHours(t *testing.T) {
	h := HourOfDaySeries{14: 1, 3: 2, 9: 0}
	assert.Equal(t, []int{3, 9, 14}, h.Hours())
}

func TestISOHour(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Vienna")
	require.NoError(t, err)
	assert.Equal(t, "2024-07-27T10:00:00+02:00", ISOHour(time.Date(2024, 7, 27, 10, 45, 12, 0, loc)))

	// 02:00 occurs twice on 2024-10-27
	first := time.Date(2024, 10, 27, 1, 30, 0, 0, loc).Add(time.Hour)
	assert.Equal(t, "2024-10-27T02:00:00+02:00", ISOHour(first))
	assert.Equal(t, "2024-10-27T02:00:00+01:00", ISOHour(first.Add(time.Hour)))
}

func TestError(t *testing.T) {
	t.Run("kind matching", func(t *testing.T) {
		err := fmt.Errorf("run failed: %w", NewError(ErrorKindAlignment, "no overlapping hours"))
		assert.True(t, errors.Is(err, ErrAlignment))
		assert.False(t, errors.Is(err, ErrDataNotFound))
		assert.Equal(t, ErrorKindAlignment, KindOf(err))
		assert.Equal(t, "run failed: no overlapping hours", err.Error())
	})

	t.Run("wrapped cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := &Error{Kind: ErrorKindConfiguration, Msg: "bad table", Err: cause}
		assert.ErrorIs(t, err, cause)
		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Equal(t, "bad table: boom", err.Error())
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Equal(t, ErrorKindUnknown, KindOf(errors.New("plain")))
		assert.Equal(t, "insufficientData", ErrInsufficientData.Error())
	})
}
