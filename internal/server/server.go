// Package server exposes the sky over HTTP for previews and monitoring.
package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/brettg0396/skyface-go/internal/observability"
	"github.com/brettg0396/skyface-go/internal/render"
	"github.com/brettg0396/skyface-go/internal/sky"
)

// Engine is the part of sky.Engine the server reads and drives.
type Engine interface {
	Render(ctx context.Context, now time.Time, mode render.Mode) *image.RGBA
	CombinedEffectFrame(now time.Time) *image.RGBA
	Status() sky.Status
	OnLocationUpdated(lat, lon float64)
}

// Options configures a Server.
type Options struct {
	Engine Engine
	Logger *zap.Logger
	Now    func() time.Time
	// CachePing, when set, is checked by /health.
	CachePing func() error
	// RequestTimeout bounds image rendering; zero means 5s.
	RequestTimeout time.Duration
}

// Server serves sky previews, status and metrics.
type Server struct {
	engine    Engine
	logger    *zap.Logger
	now       func() time.Time
	cachePing func() error
	timeout   time.Duration
	router    *mux.Router
}

// New builds a Server with its routes registered.
func New(opts Options) *Server {
	s := &Server{
		engine:    opts.Engine,
		logger:    opts.Logger,
		now:       opts.Now,
		cachePing: opts.CachePing,
		timeout:   opts.RequestTimeout,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}

	r := mux.NewRouter()
	r.Use(CorrelationIDMiddleware(s.logger))
	r.Use(MetricsMiddleware)
	r.HandleFunc("/sky.png", s.getSky).Methods(http.MethodGet)
	r.HandleFunc("/effects.png", s.getEffects).Methods(http.MethodGet)
	r.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	r.HandleFunc("/location", s.postLocation).Methods(http.MethodPost)
	r.HandleFunc("/health", s.getHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down with a
// grace period of shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
