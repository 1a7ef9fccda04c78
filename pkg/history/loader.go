// Package history reads the historical PV production table and reduces it to
// the representative hourly production of one calendar day.
package history

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pvcast/pvcast/pkg/log"
	"github.com/pvcast/pvcast/pkg/types"
)

// TimestampColumn is the name of the required timestamp column.
const TimestampColumn = "timestamp"

// Day-first layouts are tried before the ISO ones.
var timestampLayouts = []string{
	"02.01.2006 15:04",
	"02.01.2006 15:04:05",
	"2.1.2006 15:04",
	"2.1.2006 15:04:05",
	"02.01.2006",
	"2.1.2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Loader reads a semicolon separated production table with a timestamp
// column and a value column holding power in kW written with a decimal
// comma.
type Loader struct {
	// ValueColumn is the header of the column holding the PV power.
	ValueColumn string
	// Location is the site's timezone. Timestamps without an offset are
	// interpreted in it.
	Location *time.Location
}

// LoadDay opens the table at path and returns the hourly production for every
// year's occurrence of key.
func (l Loader) LoadDay(ctx context.Context, path string, key types.CalendarKey) (types.PVHistoryRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.PVHistoryRecord{}, fmt.Errorf("failed to open pv history (%s): %w", path, err)
	}
	defer f.Close()

	rec, err := l.ParseDay(ctx, f, key)
	if err != nil {
		return types.PVHistoryRecord{}, fmt.Errorf("failed to load pv history (%s): %w", path, err)
	}
	return rec, nil
}

type hourBin struct {
	sum   float64
	count int
}

// ParseDay is LoadDay on an already opened table.
func (l Loader) ParseDay(ctx context.Context, r io.Reader, key types.CalendarKey) (types.PVHistoryRecord, error) {
	loc := l.Location
	if loc == nil {
		loc = time.Local
	}

	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return types.PVHistoryRecord{}, types.NewError(types.ErrorKindConfiguration, "pv history is empty, expected a %q column", TimestampColumn)
	} else if err != nil {
		return types.PVHistoryRecord{}, fmt.Errorf("failed to read pv history header: %w", err)
	}
	tsIdx, valIdx := -1, -1
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		switch name {
		case TimestampColumn:
			tsIdx = i
		case l.ValueColumn:
			valIdx = i
		}
	}
	if tsIdx < 0 {
		return types.PVHistoryRecord{}, types.NewError(types.ErrorKindConfiguration, "pv history must contain a %q column", TimestampColumn)
	}
	if l.ValueColumn == "" || valIdx < 0 {
		return types.PVHistoryRecord{}, types.NewError(types.ErrorKindConfiguration, "pv history does not contain the configured value column: %q", l.ValueColumn)
	}

	// bins are keyed by the unix start of each absolute hour
	bins := make(map[int64]*hourBin)
	days := make(map[string]time.Time)
	var total, badRow, badTime, badValue, matched int
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				badRow++
				continue
			}
			return types.PVHistoryRecord{}, fmt.Errorf("failed to read pv history: %w", err)
		}
		total++
		if tsIdx >= len(row) || valIdx >= len(row) {
			badValue++
			continue
		}
		ts, ok := parseTimestamp(row[tsIdx], loc)
		if !ok {
			badTime++
			continue
		}
		v, ok := ParseDecimalComma(row[valIdx])
		if !ok {
			badValue++
			continue
		}
		if !key.Matches(ts) {
			continue
		}
		matched++

		hour := ts.Truncate(time.Hour).Unix()
		b := bins[hour]
		if b == nil {
			b = &hourBin{}
			bins[hour] = b
		}
		b.sum += v
		b.count++
		days[types.DateString(ts)] = types.TruncateDay(ts)
	}

	log.Ctx(ctx).DebugContext(
		ctx,
		"parsed pv history",
		slog.String("key", key.String()),
		slog.Int("rows", total),
		slog.Int("matched", matched),
		slog.Int("badRow", badRow),
		slog.Int("badTimestamp", badTime),
		slog.Int("badValue", badValue),
	)

	if matched == 0 {
		return types.PVHistoryRecord{}, types.NewError(types.ErrorKindDataNotFound, "no pv rows found for month/day=%s", key)
	}

	sortedDays := make([]time.Time, 0, len(days))
	for _, d := range days {
		sortedDays = append(sortedDays, d)
	}
	sort.Slice(sortedDays, func(i, j int) bool {
		return sortedDays[i].Before(sortedDays[j])
	})

	series := make(types.HourlySeries, 0, 24*len(sortedDays))
	for _, d := range sortedDays {
		// walk absolute hours so DST days yield 23 or 25 distinct samples
		next := time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc)
		for hour := d; hour.Before(next); hour = hour.Add(time.Hour) {
			v := 0.0
			if b := bins[hour.Unix()]; b != nil {
				v = b.sum / float64(b.count)
			}
			series = append(series, types.Sample{TS: hour.In(loc), Value: v})
		}
	}

	return types.PVHistoryRecord{
		Key:      key,
		HourlyKW: series,
		Rows:     matched,
	}, nil
}

func parseTimestamp(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05Z07:00"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.In(loc), true
		}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ParseDecimalComma parses a number written with ',' as the decimal separator
// and optional '.' thousands separators, such as "1.234,5".
func ParseDecimalComma(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.ReplaceAll(raw, ".", "")
	raw = strings.ReplaceAll(raw, ",", ".")
	if raw == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}
