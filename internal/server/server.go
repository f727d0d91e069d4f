// Package server implements the cats HTTP endpoints in front of the cat API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Sternrassler/catproxy/pkg/catapi"
	"github.com/Sternrassler/catproxy/pkg/metrics"
	"github.com/rs/zerolog"
)

// ImageSource returns a single random image.
type ImageSource interface {
	RandomImage(ctx context.Context) (catapi.Image, error)
}

// BatchSource fetches a batch of images for a raw limit value.
type BatchSource interface {
	FetchLimit(ctx context.Context, rawLimit string) ([]catapi.Image, error)
}

// Server wires the cats routes, health and metrics endpoints.
type Server struct {
	images ImageSource
	batch  BatchSource
	logger zerolog.Logger
	mux    *http.ServeMux
}

// New creates a server. logger is the base for per-request loggers.
func New(images ImageSource, batch BatchSource, logger zerolog.Logger) *Server {
	s := &Server{
		images: images,
		batch:  batch,
		logger: logger.With().Str("component", "server").Logger(),
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /cats", s.getCatImage)
	s.mux.HandleFunc("POST /cats", s.createCat)
	s.mux.HandleFunc("GET /cats/count", s.getManyImages)
	s.mux.HandleFunc("GET /health", healthHandler)
	s.mux.Handle("GET /metrics", metrics.Handler())

	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.requestID(s.accessLog(s.mux))
}

// Serve runs the HTTP server on ln until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting cat proxy server")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info().Dur("timeout", shutdownTimeout).Msg("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}
