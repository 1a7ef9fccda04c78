// Command seed writes a synthetic PV production table in the semicolon
// separated, decimal comma format the pipeline reads.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/shopspring/decimal"

	"github.com/pvcast/pvcast/pkg/history"
	"github.com/pvcast/pvcast/pkg/log"
)

const seedTimestampLayout = "02.01.2006 15:04"

type seedConfig struct {
	ValueColumn string
	Start       time.Time
	Days        int
	PeakKW      float64
	Step        time.Duration
}

func main() {
	output := lflag.String("seed-output", "./input_data/production.csv", "Path of the table to write")
	valueColumn := lflag.String("seed-value-column", "AT0090000000000000000X312X009800E", "Header of the power column")
	timezone := lflag.String("seed-timezone", "Europe/Vienna", "IANA timezone of the timestamps")
	start := lflag.String("seed-start", "2021-01-01", "First day to write (YYYY-MM-DD)")
	days := lflag.String("seed-days", "365", "Number of days to write")
	peak := lflag.String("seed-peak-kw", "5.0", "Clear sky peak power in kW at midsummer")
	lflag.Configure()
	log.Configure()

	ctx := context.Background()

	loc, err := time.LoadLocation(*timezone)
	if err != nil {
		panic(fmt.Errorf("failed to load timezone (%s): %w", *timezone, err))
	}
	startDay, err := time.ParseInLocation(time.DateOnly, *start, loc)
	if err != nil {
		panic(fmt.Errorf("invalid seed-start (%s): %w", *start, err))
	}
	n, err := strconv.Atoi(*days)
	if err != nil || n <= 0 {
		panic(fmt.Errorf("invalid seed-days (%s)", *days))
	}
	peakKW, err := strconv.ParseFloat(*peak, 64)
	if err != nil || peakKW <= 0 {
		panic(fmt.Errorf("invalid seed-peak-kw (%s)", *peak))
	}

	if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
		panic(fmt.Errorf("failed to create output dir: %w", err))
	}
	f, err := os.Create(*output)
	if err != nil {
		panic(fmt.Errorf("failed to create %s: %w", *output, err))
	}
	defer f.Close()

	log.Ctx(ctx).InfoContext(ctx, "seeding pv history", slog.String("output", *output), slog.Int("days", n))

	// Use a new random source
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	rows, err := writeSeed(f, seedConfig{
		ValueColumn: *valueColumn,
		Start:       startDay,
		Days:        n,
		PeakKW:      peakKW,
		Step:        15 * time.Minute,
	}, rng)
	if err != nil {
		panic(fmt.Errorf("failed to write seed: %w", err))
	}

	log.Ctx(ctx).InfoContext(ctx, "seeding complete", slog.Int("rows", rows))
}

// writeSeed writes the header and one row per step of every day and returns
// the number of rows written.
func writeSeed(w io.Writer, cfg seedConfig, rng *rand.Rand) (int, error) {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write([]string{history.TimestampColumn, cfg.ValueColumn}); err != nil {
		return 0, err
	}

	var rows int
	day := cfg.Start
	for i := 0; i < cfg.Days; i++ {
		next := day.AddDate(0, 0, 1)
		// one cloud cover per day with some jitter per sample
		clearness := 0.3 + rng.Float64()*0.7
		for t := day; t.Before(next); t = t.Add(cfg.Step) {
			kw := solarKW(t, cfg.PeakKW) * clearness * (0.95 + rng.Float64()*0.1)
			if err := cw.Write([]string{t.Format(seedTimestampLayout), decimalComma(kw)}); err != nil {
				return rows, err
			}
			rows++
		}
		day = next
	}
	cw.Flush()
	return rows, cw.Error()
}

// solarKW is a bell curve around 13:00 local time that is wider and taller in
// summer.
func solarKW(t time.Time, peakKW float64) float64 {
	season := math.Cos(2 * math.Pi * float64(t.YearDay()-172) / 365)
	halfDaylight := 4.5 + 2.5*season
	hour := float64(t.Hour()) + float64(t.Minute())/60
	dist := math.Abs(hour - 13.0)
	if dist >= halfDaylight {
		return 0
	}
	height := peakKW * (0.65 + 0.35*season)
	width := halfDaylight * halfDaylight / 4
	return height * math.Exp(-(dist*dist)/width)
}

func decimalComma(v float64) string {
	return strings.Replace(decimal.NewFromFloat(v).StringFixed(3), ".", ",", 1)
}
