// Package http provides the operational HTTP surface of the worker: health and
// readiness endpoints plus a separate Prometheus metrics server.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// CheckFunc reports whether a dependency is reachable.
type CheckFunc func(ctx context.Context) error

// Server represents the operational HTTP server
type Server struct {
	server            *http.Server
	logger            *slog.Logger
	checks            map[string]CheckFunc
	metricsMiddleware Middleware
}

// NewServer creates a new operational HTTP server. The checks map names each
// dependency probed by the readiness endpoint (e.g. "database", "graph").
// A nil metricsMiddleware disables request metrics.
func NewServer(
	host string,
	port int,
	logger *slog.Logger,
	checks map[string]CheckFunc,
	metricsMiddleware Middleware,
) *Server {
	return &Server{
		logger:            logger,
		checks:            checks,
		metricsMiddleware: metricsMiddleware,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	// Create router
	mux := http.NewServeMux()

	// Health and readiness endpoints
	mux.Handle("/health", HealthHandler())
	mux.Handle("/ready", ReadinessHandler(ctx, s.checks, s.logger))

	// Apply middleware
	middlewares := []Middleware{
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
	}
	if s.metricsMiddleware != nil {
		middlewares = append(middlewares, s.metricsMiddleware)
	}
	handler := ChainMiddleware(middlewares...)(mux)

	s.server.Handler = handler

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
