// Package httpserver owns the HTTP server lifecycle so main stays small.
package httpserver

import (
	"context"
	"net/http"
	"time"
)

// New returns an http.Server with conservative timeouts. The per-request
// timeout is enforced by middleware; these guard the connection itself.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Server wraps http.Server with a minimal lifecycle surface.
type Server struct {
	srv *http.Server
}

func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
