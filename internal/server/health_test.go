package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func probeGet(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return rec, resp
}

func TestHealthServer_ReadyLifecycle(t *testing.T) {
	s := NewHealthServer(nil)
	h := s.Handler()

	rec, resp := probeGet(t, h, "/ready")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before SetReady, got %d", rec.Code)
	}
	if resp.Status != HealthStatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", resp.Status)
	}

	s.SetReady(true)
	rec, resp = probeGet(t, h, "/readyz")
	if rec.Code != http.StatusOK || resp.Status != HealthStatusHealthy {
		t.Errorf("expected healthy 200 after SetReady, got %d %s", rec.Code, resp.Status)
	}
}

func TestHealthServer_LiveDefault(t *testing.T) {
	s := NewHealthServer(nil)
	h := s.Handler()

	for _, path := range []string{"/live", "/livez"} {
		rec, _ := probeGet(t, h, path)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	s.SetLive(false)
	rec, _ := probeGet(t, h, "/live")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after SetLive(false), got %d", rec.Code)
	}
}

func TestHealthServer_AggregatesChecks(t *testing.T) {
	s := NewHealthServer(&HealthConfig{Version: "0.1.0"})
	s.RegisterCheck("ok", func(ctx context.Context) HealthCheck {
		return HealthCheck{Status: HealthStatusHealthy}
	})

	rec, resp := probeGet(t, s.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.Status != HealthStatusHealthy || resp.Version != "0.1.0" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.Checks) != 1 || resp.Checks[0].Name != "ok" {
		t.Errorf("unexpected checks: %+v", resp.Checks)
	}
}

func TestHealthServer_UnhealthyCheckWins(t *testing.T) {
	s := NewHealthServer(nil)
	s.RegisterCheck("good", func(ctx context.Context) HealthCheck {
		return HealthCheck{Status: HealthStatusHealthy}
	})
	s.RegisterCheck("bad", func(ctx context.Context) HealthCheck {
		return HealthCheck{Status: HealthStatusUnhealthy, Message: "down"}
	})

	rec, resp := probeGet(t, s.Handler(), "/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if resp.Status != HealthStatusUnhealthy {
		t.Errorf("expected unhealthy aggregate, got %s", resp.Status)
	}
}

func TestHealthServer_DegradedKeeps200(t *testing.T) {
	s := NewHealthServer(nil)
	s.RegisterCheck("slow", func(ctx context.Context) HealthCheck {
		return HealthCheck{Status: HealthStatusDegraded}
	})

	rec, resp := probeGet(t, s.Handler(), "/health")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for degraded, got %d", rec.Code)
	}
	if resp.Status != HealthStatusDegraded {
		t.Errorf("expected degraded aggregate, got %s", resp.Status)
	}
}

func TestVectorStoreHealthChecker(t *testing.T) {
	ctx := context.Background()

	ok := VectorStoreHealthChecker(func(ctx context.Context) error { return nil })(ctx)
	if ok.Status != HealthStatusHealthy || ok.Message != "Vector store OK" {
		t.Errorf("unexpected healthy check: %+v", ok)
	}

	bad := VectorStoreHealthChecker(func(ctx context.Context) error {
		return errors.New("connection refused")
	})(ctx)
	if bad.Status != HealthStatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", bad.Status)
	}
}

func TestTemporalHealthChecker(t *testing.T) {
	check := TemporalHealthChecker(func(ctx context.Context) error {
		return errors.New("dial tcp: refused")
	})(context.Background())
	if check.Status != HealthStatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", check.Status)
	}
}

func TestLLMHealthChecker(t *testing.T) {
	ctx := context.Background()

	configured := LLMHealthChecker("anthropic", nil)(ctx)
	if configured.Status != HealthStatusHealthy {
		t.Errorf("expected healthy with nil checkFn, got %s", configured.Status)
	}

	degraded := LLMHealthChecker("anthropic", func(ctx context.Context) error {
		return errors.New("429")
	})(ctx)
	if degraded.Status != HealthStatusDegraded {
		t.Errorf("expected degraded, got %s", degraded.Status)
	}
	if degraded.Details["provider"] != "anthropic" {
		t.Errorf("expected provider detail, got %+v", degraded.Details)
	}
}
