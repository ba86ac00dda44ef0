// Package ui provides the web dashboard for LeapCI build history.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/leapci/internal/state"
	"golang.org/x/sync/errgroup"
)

// Server is the dashboard server.
type Server struct {
	store   state.Store
	port    int
	project string
	logger  *slog.Logger
}

// Config holds configuration for the dashboard server.
type Config struct {
	Store   state.Store
	Port    int
	Project string
	Logger  *slog.Logger
}

// NewServer creates a new dashboard server instance.
func NewServer(cfg Config) *Server {
	return &Server{
		store:   cfg.Store,
		port:    cfg.Port,
		project: cfg.Project,
		logger:  cfg.Logger,
	}
}

// Serve starts the dashboard server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting dashboard", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start HTTP server
	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down dashboard...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Routes builds the dashboard's HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/", s.handleHome)
	r.Get("/healthz", s.handleHealth)
	r.Route("/api/builds", func(r chi.Router) {
		r.Get("/", s.handleListBuilds)
		r.Get("/{id}", s.handleGetBuild)
	})

	return r
}
