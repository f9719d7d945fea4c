package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// VaultConfig configures the HashiCorp Vault source (KV v2 engine).
type VaultConfig struct {
	// Address of the Vault server, e.g. "http://localhost:8200".
	Address string
	// Token for authentication.
	Token string
	// MountPath of the secrets engine (default "secret").
	MountPath string
	// SecretPath under the mount holding the sift secrets (default "sift").
	SecretPath string
	// Timeout for Vault API requests.
	Timeout time.Duration
}

// DefaultVaultConfig returns defaults for a local dev Vault.
func DefaultVaultConfig() *VaultConfig {
	return &VaultConfig{
		Address:    "http://localhost:8200",
		MountPath:  "secret",
		SecretPath: "sift",
		Timeout:    10 * time.Second,
	}
}

// VaultSource reads and writes a single KV v2 secret document; individual
// keys live inside that document.
type VaultSource struct {
	config *VaultConfig
	client *http.Client
}

// NewVaultSource creates a Vault-backed source.
func NewVaultSource(config *VaultConfig) (*VaultSource, error) {
	if config == nil {
		config = DefaultVaultConfig()
	}
	if config.Address == "" {
		return nil, fmt.Errorf("vault address required")
	}
	if config.Token == "" {
		return nil, fmt.Errorf("vault token required")
	}
	if config.MountPath == "" {
		config.MountPath = "secret"
	}
	if config.SecretPath == "" {
		config.SecretPath = "sift"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &VaultSource{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

func (s *VaultSource) Name() string { return "vault" }

func (s *VaultSource) Get(ctx context.Context, key string) (string, error) {
	doc, err := s.readDocument(ctx)
	if err != nil {
		return "", err
	}

	val, ok := doc[key]
	if !ok {
		return "", fmt.Errorf("key not found in vault: %s", key)
	}
	if str, ok := val.(string); ok {
		return str, nil
	}
	return fmt.Sprintf("%v", val), nil
}

func (s *VaultSource) Set(ctx context.Context, key, value string) error {
	doc, err := s.readDocument(ctx)
	if err != nil {
		doc = make(map[string]any)
	}
	doc[key] = value
	return s.writeDocument(ctx, doc)
}

func (s *VaultSource) Delete(ctx context.Context, key string) error {
	doc, err := s.readDocument(ctx)
	if err != nil {
		return err
	}
	delete(doc, key)
	return s.writeDocument(ctx, doc)
}

func (s *VaultSource) documentURL() string {
	return fmt.Sprintf("%s/v1/%s/data/%s",
		strings.TrimSuffix(s.config.Address, "/"),
		s.config.MountPath,
		s.config.SecretPath,
	)
}

// readDocument fetches the full KV v2 document.
func (s *VaultSource) readDocument(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.documentURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Vault-Token", s.config.Token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vault request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("secret path not found: %s", s.config.SecretPath)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vault error %d: %s", resp.StatusCode, body)
	}

	var result struct {
		Data struct {
			Data map[string]any `json:"data"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Data.Data, nil
}

// writeDocument replaces the full KV v2 document.
func (s *VaultSource) writeDocument(ctx context.Context, doc map[string]any) error {
	body, err := json.Marshal(map[string]any{"data": doc})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.documentURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Vault-Token", s.config.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("vault request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vault error %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
