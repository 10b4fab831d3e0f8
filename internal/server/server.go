// Package server wraps the standard HTTP server with startup and graceful
// shutdown helpers.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/MKhiriev/go-remind-sync/internal/config"
)

// shutdownTimeout bounds how long in-flight requests may run after a
// shutdown signal.
const shutdownTimeout = 10 * time.Second

// Server is the sync engine's HTTP server.
type Server struct {
	httpServer *http.Server
}

// NewServer constructs the server for the given configuration and handler.
func NewServer(cfg config.Server, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPAddress,
			Handler:      handler,
			ReadTimeout:  cfg.RequestTimeout,
			WriteTimeout: cfg.RequestTimeout,
		},
	}
}

// Run starts serving and blocks until the listener closes.
func (s *Server) Run() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting new connections and waits for in-flight requests
// up to the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}
