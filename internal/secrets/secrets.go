// Package secrets resolves credentials from environment variables, a local
// JSON file, or HashiCorp Vault, with env always consulted as a fallback.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// SecretKey identifies common secret types.
type SecretKey string

const (
	SecretLLMAPIKey    SecretKey = "llm_api_key"
	SecretQdrantAPIKey SecretKey = "qdrant_api_key"
)

// Source is a single secrets backend.
type Source interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Name() string
}

// Config selects and configures the primary backend.
type Config struct {
	// Provider is "env", "file", or "vault".
	Provider string
	// VaultConfig for the vault backend.
	VaultConfig *VaultConfig
	// FileConfig for the file backend (development only).
	FileConfig *FileConfig
	// EnvPrefix for environment variable names (default "SIFT_").
	EnvPrefix string
}

// DefaultConfig returns the env-based default.
func DefaultConfig() *Config {
	return &Config{Provider: "env", EnvPrefix: "SIFT_"}
}

// Manager resolves secrets through an ordered chain of sources, caching
// successful lookups.
type Manager struct {
	chain []Source

	mu       sync.RWMutex
	cache    map[string]string
	useCache bool
}

// NewManager builds the source chain for cfg. The env source is always the
// last link so environment variables can stand in for any backend.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	env := NewEnvSource(cfg.EnvPrefix)
	var chain []Source

	switch cfg.Provider {
	case "env", "":
		chain = []Source{env}
	case "file":
		if cfg.FileConfig == nil {
			return nil, fmt.Errorf("secrets: file config required for file provider")
		}
		fs, err := NewFileSource(cfg.FileConfig)
		if err != nil {
			return nil, fmt.Errorf("secrets: %w", err)
		}
		chain = []Source{fs, env}
	case "vault":
		if cfg.VaultConfig == nil {
			return nil, fmt.Errorf("secrets: vault config required for vault provider")
		}
		vs, err := NewVaultSource(cfg.VaultConfig)
		if err != nil {
			return nil, fmt.Errorf("secrets: %w", err)
		}
		chain = []Source{vs, env}
	default:
		return nil, fmt.Errorf("secrets: unknown provider %q", cfg.Provider)
	}

	return &Manager{
		chain:    chain,
		cache:    make(map[string]string),
		useCache: true,
	}, nil
}

// Get walks the source chain and returns the first non-empty value.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	if m.useCache {
		m.mu.RLock()
		val, ok := m.cache[key]
		m.mu.RUnlock()
		if ok {
			return val, nil
		}
	}

	for _, src := range m.chain {
		val, err := src.Get(ctx, key)
		if err == nil && val != "" {
			m.remember(key, val)
			return val, nil
		}
	}
	return "", fmt.Errorf("secrets: %s not found", key)
}

// GetOrDefault returns the secret or defaultVal when it cannot be resolved.
func (m *Manager) GetOrDefault(ctx context.Context, key, defaultVal string) string {
	val, err := m.Get(ctx, key)
	if err != nil || val == "" {
		return defaultVal
	}
	return val
}

// MustGet returns the secret or panics.
func (m *Manager) MustGet(ctx context.Context, key string) string {
	val, err := m.Get(ctx, key)
	if err != nil {
		panic(fmt.Sprintf("secrets: required secret %s not found", key))
	}
	return val
}

// Set writes the secret to the primary source.
func (m *Manager) Set(ctx context.Context, key, value string) error {
	if err := m.chain[0].Set(ctx, key, value); err != nil {
		return err
	}
	m.remember(key, value)
	return nil
}

// Delete removes the secret from the primary source and the cache.
func (m *Manager) Delete(ctx context.Context, key string) error {
	if err := m.chain[0].Delete(ctx, key); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.cache, key)
	m.mu.Unlock()
	return nil
}

// ClearCache drops all cached values.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	m.cache = make(map[string]string)
	m.mu.Unlock()
}

// DisableCache turns off lookup caching.
func (m *Manager) DisableCache() {
	m.useCache = false
}

func (m *Manager) remember(key, value string) {
	if !m.useCache {
		return
	}
	m.mu.Lock()
	m.cache[key] = value
	m.mu.Unlock()
}

// EnvSource reads secrets from environment variables, first with the
// configured prefix and then bare.
type EnvSource struct {
	prefix string
}

// NewEnvSource creates an environment-based source.
func NewEnvSource(prefix string) *EnvSource {
	if prefix == "" {
		prefix = "SIFT_"
	}
	return &EnvSource{prefix: prefix}
}

func (s *EnvSource) Name() string { return "env" }

func (s *EnvSource) Get(_ context.Context, key string) (string, error) {
	upper := strings.ToUpper(key)
	if val := os.Getenv(s.prefix + upper); val != "" {
		return val, nil
	}
	if val := os.Getenv(upper); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("env var not found: %s%s", s.prefix, upper)
}

func (s *EnvSource) Set(_ context.Context, key, value string) error {
	return os.Setenv(s.prefix+strings.ToUpper(key), value)
}

func (s *EnvSource) Delete(_ context.Context, key string) error {
	return os.Unsetenv(s.prefix + strings.ToUpper(key))
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// Init initializes the global secrets manager. Later calls are no-ops.
func Init(cfg *Config) error {
	var err error
	managerOnce.Do(func() {
		globalManager, err = NewManager(cfg)
	})
	return err
}

// Get resolves a secret through the global manager, initializing it with
// defaults when needed.
func Get(ctx context.Context, key string) (string, error) {
	if globalManager == nil {
		if err := Init(nil); err != nil {
			return "", err
		}
	}
	return globalManager.Get(ctx, key)
}

// GetOrDefault resolves a secret or returns defaultVal.
func GetOrDefault(ctx context.Context, key, defaultVal string) string {
	if globalManager == nil {
		Init(nil)
	}
	return globalManager.GetOrDefault(ctx, key, defaultVal)
}

// MustGet resolves a secret or panics.
func MustGet(ctx context.Context, key string) string {
	if globalManager == nil {
		Init(nil)
	}
	return globalManager.MustGet(ctx, key)
}
