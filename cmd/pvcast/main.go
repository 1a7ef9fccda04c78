package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/levenlabs/go-lflag"

	"github.com/pvcast/pvcast/pkg/log"
	"github.com/pvcast/pvcast/pkg/metrics"
	"github.com/pvcast/pvcast/pkg/pipeline"
	"github.com/pvcast/pvcast/pkg/prices"
	"github.com/pvcast/pvcast/pkg/server"
	"github.com/pvcast/pvcast/pkg/storage"
	"github.com/pvcast/pvcast/pkg/weather"
)

func main() {
	// init packages
	m := metrics.New()
	w := weather.Configured(m)
	pm := prices.Configured(m)
	s := storage.Configured()
	p := pipeline.Configured(w, pm, s, m)

	// init server
	srv := server.Configured(p, pm, s, m)

	// parse flags
	lflag.Configure()
	log.Configure()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", "error", err)
		}
	}()

	// Run will block until context is canceled or error happens
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
