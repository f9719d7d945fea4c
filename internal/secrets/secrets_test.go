package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestEnvSource(t *testing.T) {
	t.Setenv("SIFT_LLM_API_KEY", "sk-test")

	s := NewEnvSource("")
	val, err := s.Get(context.Background(), string(SecretLLMAPIKey))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "sk-test" {
		t.Errorf("expected sk-test, got %q", val)
	}
}

func TestEnvSource_BareFallback(t *testing.T) {
	t.Setenv("QDRANT_API_KEY", "qd-123")

	s := NewEnvSource("SIFT_")
	val, err := s.Get(context.Background(), string(SecretQdrantAPIKey))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "qd-123" {
		t.Errorf("expected qd-123, got %q", val)
	}
}

func TestEnvSource_Missing(t *testing.T) {
	s := NewEnvSource("SIFT_")
	if _, err := s.Get(context.Background(), "definitely_not_set_anywhere"); err == nil {
		t.Fatal("expected error for missing env var")
	}
}

func TestFileSource_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	s, err := NewFileSource(&FileConfig{Path: path, CreateIfMissing: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx := context.Background()
	if err := s.Set(ctx, "webhook_secret", "whsec_abc"); err != nil {
		t.Fatalf("set: %v", err)
	}

	val, err := s.Get(ctx, "webhook_secret")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "whsec_abc" {
		t.Errorf("expected whsec_abc, got %q", val)
	}

	// A fresh source reads the persisted value.
	reopened, err := NewFileSource(&FileConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if val, _ := reopened.Get(ctx, "webhook_secret"); val != "whsec_abc" {
		t.Errorf("expected persisted value, got %q", val)
	}

	if err := s.Delete(ctx, "webhook_secret"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "webhook_secret"); err == nil {
		t.Fatal("expected error after delete")
	}
}

func TestFileSource_RequiresPath(t *testing.T) {
	if _, err := NewFileSource(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := NewFileSource(&FileConfig{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestFileSource_RestrictivePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	s, err := NewFileSource(&FileConfig{Path: path, CreateIfMissing: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Set(context.Background(), "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected 0600 permissions, got %o", perm)
	}
}

func TestVaultSource_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data": map[string]any{"llm_api_key": "sk-vault"},
			},
		})
	}))
	defer srv.Close()

	s, err := NewVaultSource(&VaultConfig{Address: srv.URL, Token: "root"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	val, err := s.Get(context.Background(), "llm_api_key")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "sk-vault" {
		t.Errorf("expected sk-vault, got %q", val)
	}

	if _, err := s.Get(context.Background(), "missing_key"); err == nil {
		t.Fatal("expected error for missing key")
	}
}

func TestVaultSource_RequiresAddressAndToken(t *testing.T) {
	if _, err := NewVaultSource(&VaultConfig{Token: "t"}); err == nil {
		t.Fatal("expected error without address")
	}
	if _, err := NewVaultSource(&VaultConfig{Address: "http://localhost:8200"}); err == nil {
		t.Fatal("expected error without token")
	}
}

func TestManager_ChainFallsBackToEnv(t *testing.T) {
	t.Setenv("SIFT_QDRANT_API_KEY", "qdr-env")

	path := filepath.Join(t.TempDir(), "secrets.json")
	m, err := NewManager(&Config{
		Provider:   "file",
		FileConfig: &FileConfig{Path: path, CreateIfMissing: true},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	val, err := m.Get(context.Background(), string(SecretQdrantAPIKey))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if val != "qdr-env" {
		t.Errorf("expected env fallback value, got %q", val)
	}
}

func TestManager_PrimaryWins(t *testing.T) {
	t.Setenv("SIFT_LLM_API_KEY", "sk-env")

	path := filepath.Join(t.TempDir(), "secrets.json")
	m, err := NewManager(&Config{
		Provider:   "file",
		FileConfig: &FileConfig{Path: path, CreateIfMissing: true},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	ctx := context.Background()
	if err := m.Set(ctx, string(SecretLLMAPIKey), "sk-file"); err != nil {
		t.Fatalf("set: %v", err)
	}

	if val, _ := m.Get(ctx, string(SecretLLMAPIKey)); val != "sk-file" {
		t.Errorf("expected file value to win, got %q", val)
	}
}

func TestManager_GetOrDefault(t *testing.T) {
	m, err := NewManager(nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	m.DisableCache()

	if got := m.GetOrDefault(context.Background(), "nonexistent_secret_key", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestManager_Cache(t *testing.T) {
	t.Setenv("SIFT_CACHED_SECRET", "val-1")

	m, err := NewManager(nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	ctx := context.Background()
	if val, _ := m.Get(ctx, "cached_secret"); val != "val-1" {
		t.Fatalf("unexpected value %q", val)
	}

	// Cached value survives the env var changing.
	t.Setenv("SIFT_CACHED_SECRET", "val-2")
	if val, _ := m.Get(ctx, "cached_secret"); val != "val-1" {
		t.Errorf("expected cached val-1, got %q", val)
	}

	m.ClearCache()
	if val, _ := m.Get(ctx, "cached_secret"); val != "val-2" {
		t.Errorf("expected val-2 after cache clear, got %q", val)
	}
}

func TestManager_UnknownProvider(t *testing.T) {
	if _, err := NewManager(&Config{Provider: "s3"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
