// Package server provides the HTTP surface: health probes, graceful
// shutdown, and the JSON API.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// HealthStatus is the health state of a component.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck is the result of probing one component.
type HealthCheck struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HealthResponse is the body served by the probe endpoints.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// HealthChecker probes a single component.
type HealthChecker func(ctx context.Context) HealthCheck

// HealthConfig configures the health server.
type HealthConfig struct {
	Version string
	Addr    string // listen address (default ":8080")
}

// HealthServer serves /health, /ready, and /live plus Kubernetes-style
// z-suffixed aliases.
type HealthServer struct {
	mu           sync.RWMutex
	checks       map[string]HealthChecker
	version      string
	ready        bool
	live         bool
	shutdownChan chan struct{}
}

// NewHealthServer creates a health server. It reports live immediately but
// not ready until SetReady(true).
func NewHealthServer(config *HealthConfig) *HealthServer {
	s := &HealthServer{
		checks:       make(map[string]HealthChecker),
		live:         true,
		shutdownChan: make(chan struct{}),
	}
	if config != nil {
		s.version = config.Version
	}
	return s
}

// RegisterCheck adds a component check to /health.
func (s *HealthServer) RegisterCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = checker
}

// SetReady marks the server as ready to accept traffic.
func (s *HealthServer) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// SetLive marks the server as live (or not).
func (s *HealthServer) SetLive(live bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = live
}

// Handler returns the probe routes.
func (s *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, path := range []string{"/health", "/healthz"} {
		mux.HandleFunc(path, s.handleHealth)
	}
	for _, path := range []string{"/ready", "/readyz"} {
		mux.HandleFunc(path, s.flagProbe(func() bool { return s.ready }))
	}
	for _, path := range []string{"/live", "/livez"} {
		mux.HandleFunc(path, s.flagProbe(func() bool { return s.live }))
	}
	return mux
}

// ListenAndServe starts a standalone probe server on addr.
func (s *HealthServer) ListenAndServe(addr string) error {
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-s.shutdownChan
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	return srv.ListenAndServe()
}

// Shutdown stops the standalone probe server.
func (s *HealthServer) Shutdown() {
	close(s.shutdownChan)
}

// handleHealth runs every registered check and aggregates: any unhealthy
// check makes the whole response unhealthy, otherwise any degraded check
// makes it degraded.
func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s.mu.RLock()
	checks := make(map[string]HealthChecker, len(s.checks))
	for name, c := range s.checks {
		checks[name] = c
	}
	version := s.version
	s.mu.RUnlock()

	resp := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   version,
		Checks:    make([]HealthCheck, 0, len(checks)),
	}
	for name, checker := range checks {
		check := checker(ctx)
		check.Name = name
		resp.Checks = append(resp.Checks, check)

		switch check.Status {
		case HealthStatusUnhealthy:
			resp.Status = HealthStatusUnhealthy
		case HealthStatusDegraded:
			if resp.Status == HealthStatusHealthy {
				resp.Status = HealthStatusDegraded
			}
		}
	}

	code := http.StatusOK
	if resp.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

// flagProbe serves the readiness and liveness endpoints from a boolean.
func (s *HealthServer) flagProbe(flag func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		ok := flag()
		s.mu.RUnlock()

		resp := HealthResponse{
			Status:    HealthStatusHealthy,
			Timestamp: time.Now().UTC(),
		}
		if !ok {
			resp.Status = HealthStatusUnhealthy
			s.writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		s.writeJSON(w, http.StatusOK, resp)
	}
}

func (s *HealthServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// TemporalHealthChecker probes Temporal connectivity.
func TemporalHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: "Temporal connection failed: " + err.Error(),
			}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: "Temporal connection OK"}
	}
}

// VectorStoreHealthChecker probes the vector store.
func VectorStoreHealthChecker(checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusUnhealthy,
				Message: "Vector store unavailable: " + err.Error(),
			}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: "Vector store OK"}
	}
}

// LLMHealthChecker probes the LLM provider. A failing provider reports
// degraded, not unhealthy. A nil checkFn reports configuration only.
func LLMHealthChecker(providerName string, checkFn func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if checkFn == nil {
			return HealthCheck{
				Status:  HealthStatusHealthy,
				Message: "LLM provider configured: " + providerName,
			}
		}
		if err := checkFn(ctx); err != nil {
			return HealthCheck{
				Status:  HealthStatusDegraded,
				Message: "LLM provider degraded: " + err.Error(),
				Details: map[string]string{"provider": providerName},
			}
		}
		return HealthCheck{
			Status:  HealthStatusHealthy,
			Message: "LLM provider OK",
			Details: map[string]string{"provider": providerName},
		}
	}
}
