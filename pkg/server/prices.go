package server

import (
	"log/slog"
	"net/http"

	"github.com/pvcast/pvcast/pkg/log"
	"github.com/pvcast/pvcast/pkg/types"
)

// dayAheadPricesResponse is returned by /api/prices/dayAhead.
type dayAheadPricesResponse struct {
	Date     string                  `json:"date"`
	Provider types.PriceProviderInfo `json:"provider"`
	Prices   []types.Price           `json:"prices"`
}

func (s *Server) handleListPrices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.prices.List())
}

// handleDayAheadPrices returns the selected provider's hourly prices for the
// date query parameter, or today when it is empty.
func (s *Server) handleDayAheadPrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	day, err := s.pipeline.ParseRunDate(r.URL.Query().Get("date"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	info := s.prices.Info()
	prices, err := s.prices.FetchDayAheadPrices(ctx, day)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to fetch prices", slog.String("provider", info.ID), slog.Any("error", err))
		writeJSONError(w, "failed to fetch prices", http.StatusBadGateway)
		return
	}
	if prices == nil {
		prices = []types.Price{}
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	writeJSON(w, dayAheadPricesResponse{
		Date:     types.DateString(day),
		Provider: info,
		Prices:   prices,
	})
}
