// Package httpserver serves the operational HTTP endpoints of the worker:
// liveness, readiness and Prometheus metrics.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/helixir/gap-analysis-service/internal/database"
)

// HealthChecker reports database health.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the operational HTTP server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	db         HealthChecker
	metrics    http.Handler
	cfg        Config
	logger     zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// MetricsPath mounts the metrics handler. Empty disables it.
	MetricsPath string
}

// NewServer creates a new HTTP server. metrics may be nil when metrics
// exposure is disabled.
func NewServer(cfg Config, db HealthChecker, metrics http.Handler, logger zerolog.Logger) *Server {
	s := &Server{
		db:      db,
		metrics: metrics,
		cfg:     cfg,
		logger:  logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	if s.metrics != nil && s.cfg.MetricsPath != "" {
		r.Method(http.MethodGet, s.cfg.MetricsPath, s.metrics)
	}

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler reports liveness of the process.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports whether the database is reachable.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "not_ready",
			"database": health,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"database": health,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	// Headers are already sent; an encode error cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}
