package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/levenlabs/go-lflag"

	"github.com/pvcast/pvcast/pkg/log"
	"github.com/pvcast/pvcast/pkg/metrics"
	"github.com/pvcast/pvcast/pkg/pipeline"
	"github.com/pvcast/pvcast/pkg/prices"
	"github.com/pvcast/pvcast/pkg/storage"
	"github.com/pvcast/pvcast/pkg/types"
)

// tokenVerifier is a function that validates an OIDC ID Token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)

// forecaster runs the pipeline for a date. It is satisfied by
// *pipeline.Pipeline.
type forecaster interface {
	Run(ctx context.Context, runDate time.Time) (types.DailyForecastOutput, error)
	ParseRunDate(raw string) (time.Time, error)
	Today() time.Time
}

// Server exposes the forecast pipeline over HTTP: a job endpoint that runs
// it, read endpoints for the stored outputs and the Prometheus metrics.
type Server struct {
	pipeline forecaster
	prices   *prices.Map
	storage  storage.Database
	metrics  *metrics.Collector

	listenAddr string
	httpServer *http.Server

	runDailyEmails   []string
	oidcVerifiers    map[string]tokenVerifier
	serverName       string
	webCacheDuration time.Duration
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(p *pipeline.Pipeline, pm *prices.Map, db storage.Database, m *metrics.Collector) *Server {
	srv := &Server{
		pipeline:   p,
		prices:     pm,
		storage:    db,
		metrics:    m,
		serverName: "pvcast",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	oidcAudience := lflag.String("oidc-audience", "", "Audience of the ID tokens allowed to call /api/jobs/runDaily, empty disables auth")
	oidcIssuer := lflag.String("oidc-issuer", "https://accounts.google.com", "Issuer of the ID tokens allowed to call /api/jobs/runDaily")
	runDailyEmails := lflag.String("run-daily-emails", "", "comma-delimited list of token emails allowed to call /api/jobs/runDaily")
	webCacheDuration := lflag.Duration("web-cache-duration", 0, "Duration to cache outputs of past days (e.g. 1h, 5m). 0 means no cache.")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		if *runDailyEmails != "" {
			for _, email := range strings.Split(*runDailyEmails, ",") {
				if email = strings.TrimSpace(email); email != "" {
					srv.runDailyEmails = append(srv.runDailyEmails, email)
				}
			}
		}
		if *oidcAudience != "" {
			provider, err := oidc.NewProvider(context.Background(), *oidcIssuer)
			if err != nil {
				log.Ctx(context.Background()).Error("failed to initialize OIDC provider", slog.String("issuer", *oidcIssuer), slog.Any("error", err))
				os.Exit(1)
			}
			srv.oidcVerifiers = map[string]tokenVerifier{
				*oidcIssuer: provider.Verifier(&oidc.Config{ClientID: *oidcAudience}).Verify,
			}
		}
		srv.webCacheDuration = *webCacheDuration
	})

	return srv
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.Handle("POST /api/jobs/runDaily", s.authMiddleware(http.HandlerFunc(s.handleRunDaily)))
	apiMux.HandleFunc("GET /api/outputs/latest", s.handleLatestOutput)
	apiMux.HandleFunc("GET /api/outputs/byDate", s.handleOutputByDate)
	apiMux.HandleFunc("GET /api/prices/dayAhead", s.handleDayAheadPrices)
	apiMux.HandleFunc("GET /api/list/prices", s.handleListPrices)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.requestLogMiddleware(apiMux))
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

// statusForError maps a pipeline failure to an HTTP status code.
func statusForError(err error) int {
	switch types.KindOf(err) {
	case types.ErrorKindDataNotFound:
		return http.StatusNotFound
	case types.ErrorKindInsufficientData:
		return http.StatusBadGateway
	case types.ErrorKindAlignment:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.With(ctx, log.Ctx(ctx).With(slog.String("reqPath", r.URL.Path)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
