package server

import (
	"net/http"
)

// handleRunDaily runs the pipeline for the runDate query parameter, or today
// when it is empty, and returns the saved output.
func (s *Server) handleRunDaily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	runDate, err := s.pipeline.ParseRunDate(r.URL.Query().Get("runDate"))
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// the pipeline logs its own failures
	out, err := s.pipeline.Run(ctx, runDate)
	if err != nil {
		writeJSONError(w, err.Error(), statusForError(err))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, out)
}
