package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pvcast/pvcast/pkg/log"
	"github.com/pvcast/pvcast/pkg/storage"
)

func (s *Server) handleLatestOutput(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	out, err := s.storage.GetLatestForecast(ctx)
	if err != nil {
		s.writeOutputError(w, r, err)
		return
	}

	// a later run may replace it at any time
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, out)
}

func (s *Server) handleOutputByDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeJSONError(w, "date required", http.StatusBadRequest)
		return
	}
	day, err := s.pipeline.ParseRunDate(raw)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	out, err := s.storage.GetForecast(ctx, day)
	if err != nil {
		s.writeOutputError(w, r, err)
		return
	}

	s.setOutputCacheHeaders(w, day)
	writeJSON(w, out)
}

// setOutputCacheHeaders lets clients cache outputs of days before today for
// web-cache-duration.
func (s *Server) setOutputCacheHeaders(w http.ResponseWriter, day time.Time) {
	if s.webCacheDuration > 0 && day.Before(s.pipeline.Today()) {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.webCacheDuration.Seconds())))
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
}

func (s *Server) writeOutputError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if errors.Is(err, storage.ErrForecastNotFound) {
		writeJSONError(w, "forecast not found", http.StatusNotFound)
		return
	}
	log.Ctx(ctx).ErrorContext(ctx, "failed to get forecast", slog.Any("error", err))
	writeJSONError(w, "failed to get forecast", http.StatusInternalServerError)
}
