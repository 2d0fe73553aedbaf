// Package api serves the operational HTTP endpoints of a running migration.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/filmport/pkg/logger"
	"github.com/okian/filmport/pkg/metrics"
)

// Default server configuration constants.
const (
	defaultReadHeaderTimeout = 5 * time.Second
)

// Server exposes /metrics and /healthz.
type Server struct {
	addr              string
	readHeaderTimeout time.Duration
	health            *HealthHandler
	logger            logger.Logger

	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithReadHeaderTimeout bounds how long a client may take to send headers.
func WithReadHeaderTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.readHeaderTimeout = d
		}
	}
}

// NewServer creates a server for addr, e.g. ":9090".
func NewServer(addr string, opts ...Option) *Server {
	s := &Server{
		addr:              addr,
		readHeaderTimeout: defaultReadHeaderTimeout,
		health:            NewHealthHandler(),
		done:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}
	return s
}

// Health returns the handler whose phase the caller updates as the run progresses.
func (s *Server) Health() *HealthHandler { return s.health }

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", Instrument("healthz", http.HandlerFunc(s.health.HandleHealth)))
	mux.Handle("/metrics", Instrument("metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})))
	return mux
}

// Start binds the listener and serves in the background. Bind errors are
// returned immediately.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	go func() {
		defer close(s.done)
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(ctx, "operational listener stopped", logger.Error(err))
		}
	}()
	s.logger.Info(ctx, "operational listener started", logger.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown stops the server and waits for the serve loop to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
