package metric

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeffbrin/SHFT/errors"
)

// HealthCheck reports one component's health for the monitoring endpoint.
// The detail value is rendered as JSON alongside the verdict.
type HealthCheck func() (healthy bool, detail any)

// Server exposes the Prometheus registry and component health over HTTP
type Server struct {
	addr     string
	path     string
	registry *MetricsRegistry

	mu     sync.Mutex
	server *http.Server
	checks map[string]HealthCheck
}

// NewServer creates the monitoring endpoint
func NewServer(addr string, registry *MetricsRegistry) *Server {
	if addr == "" {
		addr = ":9100"
	}
	return &Server{
		addr:     addr,
		path:     "/metrics",
		registry: registry,
		checks:   make(map[string]HealthCheck),
	}
}

// RegisterHealthCheck adds a component to the health endpoint
func (s *Server) RegisterHealthCheck(name string, check HealthCheck) {
	s.mu.Lock()
	s.checks[name] = check
	s.mu.Unlock()
}

// Start serves until the listener fails or Stop is called. It blocks, so
// callers run it on its own goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Server", "Start", "metrics server running")
	}
	if s.registry == nil {
		s.mu.Unlock()
		return errors.WrapFatal(errors.ErrMissingConfig, "Server", "Start", "metrics registry not provided")
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	))
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	server := s.server
	s.mu.Unlock()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WrapFatal(err, "Server", "Start",
			fmt.Sprintf("serve on %s", s.addr))
	}
	return nil
}

// healthReport is the health endpoint's JSON document
type healthReport struct {
	Healthy    bool           `json:"healthy"`
	Components map[string]any `json:"components"`
}

// handleHealth reports per-component health. The endpoint answers 503 when
// any registered component is unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	checks := make(map[string]HealthCheck, len(s.checks))
	for name, check := range s.checks {
		checks[name] = check
	}
	s.mu.Unlock()

	report := healthReport{Healthy: true, Components: make(map[string]any, len(checks))}
	for name, check := range checks {
		healthy, detail := check()
		if !healthy {
			report.Healthy = false
		}
		report.Components[name] = detail
	}

	w.Header().Set("Content-Type", "application/json")
	if !report.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}

// Stop shuts the monitoring endpoint down
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.mu.Unlock()

	if server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "shutdown HTTP server")
	}
	return nil
}
