package metric

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the metrics registry over HTTP. Additional handlers (such
// as the health endpoint) can be mounted before Start.
type Server struct {
	port     int
	path     string
	server   *http.Server
	registry *MetricsRegistry
	mux      *http.ServeMux
	mu       sync.Mutex // protects server field
}

// NewServer creates a new metrics server with the provided registry
func NewServer(port int, path string, registry *MetricsRegistry) *Server {
	if path == "" {
		path = "/metrics"
	}
	if port == 0 {
		port = 9090
	}

	s := &Server{
		port:     port,
		path:     path,
		registry: registry,
		mux:      http.NewServeMux(),
	}
	return s
}

// Handle mounts an additional handler on the metrics server. Must be called
// before Start.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// Start starts the metrics HTTP server
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("metrics server already running")
	}
	if s.registry == nil {
		return fmt.Errorf("metrics registry not provided")
	}

	s.mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{},
	))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Startup failures after the listener is handed off cannot be
			// returned to the caller; they surface via the health endpoint
			// being unreachable.
			_ = err
		}
	}()

	return nil
}

// Stop gracefully shuts down the metrics HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}

	err := s.server.Shutdown(ctx)
	s.server = nil
	return err
}
