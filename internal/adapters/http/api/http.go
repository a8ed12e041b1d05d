// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/cors"

	"github.com/okian/riskwatch/internal/domain/model"
)

const corsMaxAge = 300

// ViewReader exposes the published view.
type ViewReader interface {
	Current(ctx context.Context) model.View
}

// BatchPusher accepts pushed batches and returns the batch as accepted,
// including its assigned id.
type BatchPusher interface {
	Push(ctx context.Context, b model.Batch) (model.Batch, error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ViewReader
	BatchPusher
}

// Server wires HTTP routes for the dashboard API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	viewHandler      *ViewHandler
	batchesHandler   *BatchesHandler
	dashboardHandler *dashboardHandler
	allowedOrigins   []string
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		viewHandler:      NewViewHandler(deps),
		batchesHandler:   NewBatchesHandler(deps),
		dashboardHandler: newDashboardHandler(),
		allowedOrigins:   []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/view", MetricsMiddleware(s.viewHandler.HandleView, "view"))
	mux.HandleFunc("/api/score", MetricsMiddleware(s.viewHandler.HandleScore, "score"))
	mux.HandleFunc("/api/series", MetricsMiddleware(s.viewHandler.HandleSeries, "series"))
	mux.HandleFunc("/api/events", MetricsMiddleware(s.viewHandler.HandleEvents, "events"))
	mux.HandleFunc("/api/raw", MetricsMiddleware(s.viewHandler.HandleRaw, "raw"))
	mux.HandleFunc("/api/status", MetricsMiddleware(s.viewHandler.HandleStatus, "status"))
	mux.HandleFunc("/api/batches", MetricsMiddleware(s.batchesHandler.HandlePostBatch, "batches"))
}

// Handler wraps h with CORS so a dashboard served from another origin can
// read the API.
func (s *Server) Handler(h http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         corsMaxAge,
	})(h)
}

// Option configures the Server.
type Option func(*Server)

// WithAllowedOrigins sets the origins allowed by CORS.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.allowedOrigins = append([]string(nil), origins...)
		}
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// allowMethod rejects requests whose method differs from method.
func allowMethod(w http.ResponseWriter, r *http.Request, op, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
	return false
}
