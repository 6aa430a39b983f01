// Package server wires the bridge's HTTP surface: the WebSocket endpoint,
// the media file routes, and a health check.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/smartchainark/clawbridge/internal/bridge"
	"github.com/smartchainark/clawbridge/internal/config"
	"github.com/smartchainark/clawbridge/internal/media"
	"github.com/smartchainark/clawbridge/internal/server/middleware"
)

// Server is the HTTP server that carries the bridge's routes.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	cfg        *config.Config
}

// New creates a Server with all routes wired.
func New(ctx context.Context, cfg *config.Config, b *bridge.Bridge, mediaHandler *media.Handler) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Recoverer)
	router.Use(middleware.RateLimitByIP(ctx, cfg.Server.RatePerSecond, cfg.Server.RateBurst))
	router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}).Handler)

	s := &Server{
		router: router,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: router,
			// No WriteTimeout: it would sever long-lived WebSocket sessions.
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
		},
	}

	router.Get("/ws", b.ServeWS)
	router.Mount(cfg.Media.Prefix, mediaHandler.Routes())

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return s
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

// Handler exposes the router, used by tests to mount the full surface.
func (s *Server) Handler() http.Handler {
	return s.router
}
