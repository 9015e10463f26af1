// Package api provides the taskbench HTTP server: manager state, batch
// control and stored reports.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/internal/bench"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReportStore is the read/write view of report storage the API needs.
type ReportStore interface {
	bench.ReportStore
	Report(ctx context.Context, id uuid.UUID) (*bench.Report, error)
	ListReports(ctx context.Context, limit int) ([]bench.Report, error)
}

// Server is the taskbench HTTP API server.
type Server struct {
	runner   *bench.Runner
	store    ReportStore // nil keeps only the runner's last report
	defaults bench.Workload
	name     string
	logger   core.Logger

	gatherer prom.Gatherer // nil disables /metrics
	baseCtx  context.Context
}

// NewServer creates a new API server. POST /api/batches starts from defaults.
func NewServer(runner *bench.Runner, store ReportStore, defaults bench.Workload, logger core.Logger) *Server {
	if logger == nil {
		logger = core.NewNoOpLogger()
	}
	return &Server{
		runner:   runner,
		store:    store,
		defaults: defaults,
		name:     "api",
		logger:   logger,
		baseCtx:  context.Background(),
	}
}

// EnableMetrics serves the given gatherer on /metrics.
func (s *Server) EnableMetrics(g prom.Gatherer) { s.gatherer = g }

// SetBaseContext sets the context background batches run under.
func (s *Server) SetBaseContext(ctx context.Context) { s.baseCtx = ctx }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Minute))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/tasks/recent", s.handleRecentTasks)
		r.Get("/tasks/active", s.handleActiveTasks)
		r.Post("/tasks/{id}/cancel", s.handleCancelTask)

		r.Get("/batches", s.handleListBatches)
		r.Post("/batches", s.handleStartBatch)
		r.Post("/batches/cancel", s.handleCancelBatch)
		r.Get("/batches/{id}", s.handleGetBatch)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

// requestLogger logs each request through core.Logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			core.F("method", r.Method),
			core.F("path", r.URL.Path),
			core.F("status", ww.Status()),
			core.F("duration", time.Since(start)),
			core.F("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}
