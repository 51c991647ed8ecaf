// Package core provides the API chassis for the Ordercast engine. It
// creates a chi router and enforces cross-cutting concerns, panic
// recovery, request correlation, logging, and error shaping, before
// requests reach domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ordercast/internal/config"
)

// RouteRegistrar mounts a domain handler's routes on the v1 router.
// Handlers register themselves through this indirection to avoid import
// cycles between core and handler packages.
type RouteRegistrar func(r chi.Router)

// Server encapsulates the chassis dependencies, allowing injection during
// testing and distinct configuration per environment.
type Server struct {
	Config *config.Config
	Logger *slog.Logger

	V1RouteRegistrars []RouteRegistrar
	HealthProbes      []HealthProbe

	router *chi.Mux
}

// NewServer initializes the chassis. Routes are mounted separately via
// MountRoutes so tests can customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Config: cfg,
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown logs termination. Connection pools are owned and closed by the
// entry point that created them.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
