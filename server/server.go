// Package server provides the HTTP status API: server setup, middleware,
// routes and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tripsit/erowid-doses/config"
	"github.com/tripsit/erowid-doses/data"
	"github.com/tripsit/erowid-doses/handlers"
	"github.com/tripsit/erowid-doses/logging"
	"github.com/tripsit/erowid-doses/metrics"
)

// Server represents the HTTP server.
type Server struct {
	server        *http.Server
	router        chi.Router
	dataContainer *data.DataContainer
	config        *config.Config
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config, dataContainer *data.DataContainer) *Server {
	router := chi.NewRouter()

	server := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:        router,
		dataContainer: dataContainer,
		config:        cfg,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures all middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(RealIPMiddleware)
	s.router.Use(logging.LoggingMiddleware(logging.DefaultLoggingService.Logger))
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(metrics.Instrument)
	s.router.Use(RateLimitHandler)
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.Get("/doses", handlers.ServeDoses(s.dataContainer))
	s.router.Get("/doses/{substance}", handlers.FindSubstanceDoses(s.dataContainer))
	s.router.Get("/health", handlers.HealthCheck(s.dataContainer))
	s.router.Handle("/metrics", promhttp.Handler())
}

// Start starts the server.
func (s *Server) Start() error {
	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	logging.Info("Server shutdown complete")
	return nil
}
