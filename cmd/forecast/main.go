// Command forecast runs the pipeline once, saves the output and prints it to
// stdout. It exits with 1 when the run fails.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/levenlabs/go-lflag"

	"github.com/pvcast/pvcast/pkg/log"
	"github.com/pvcast/pvcast/pkg/metrics"
	"github.com/pvcast/pvcast/pkg/pipeline"
	"github.com/pvcast/pvcast/pkg/prices"
	"github.com/pvcast/pvcast/pkg/storage"
	"github.com/pvcast/pvcast/pkg/types"
	"github.com/pvcast/pvcast/pkg/weather"
)

func main() {
	// metrics are not served by a one-shot run
	var m *metrics.Collector
	w := weather.Configured(m)
	pm := prices.Configured(m)
	s := storage.Configured()
	p := pipeline.Configured(w, pm, s, m)

	runDateFlag := lflag.String("run-date", "", "Date to forecast (YYYY-MM-DD), defaults to today in the site's timezone")

	lflag.Configure()
	log.Configure()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, p, s, *runDateFlag))
}

func run(ctx context.Context, p *pipeline.Pipeline, s storage.Database, rawRunDate string) int {
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
		}
	}()

	runDate, err := p.ParseRunDate(rawRunDate)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "invalid run-date", slog.Any("error", err))
		return 1
	}

	out, err := p.Run(ctx, runDate)
	if err != nil {
		log.Ctx(ctx).ErrorContext(
			ctx,
			"forecast failed",
			slog.String("kind", types.KindOf(err).String()),
			slog.Any("error", err),
		)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write output", slog.Any("error", err))
		return 1
	}
	return 0
}
