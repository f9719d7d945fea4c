package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileConfig configures the JSON-file source. Development only.
type FileConfig struct {
	// Path to the JSON secrets file.
	Path string
	// CreateIfMissing writes an empty file when none exists.
	CreateIfMissing bool
}

// FileSource stores secrets as a flat JSON object on disk.
type FileSource struct {
	path string

	mu   sync.RWMutex
	data map[string]string
}

// NewFileSource loads (or optionally creates) the secrets file.
func NewFileSource(config *FileConfig) (*FileSource, error) {
	if config == nil || config.Path == "" {
		return nil, fmt.Errorf("file path required")
	}

	s := &FileSource{path: config.Path, data: make(map[string]string)}

	raw, err := os.ReadFile(config.Path)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("parse secrets file: %w", err)
		}
	case os.IsNotExist(err) && config.CreateIfMissing:
		if err := s.flush(); err != nil {
			return nil, fmt.Errorf("create secrets file: %w", err)
		}
	case os.IsNotExist(err):
		// Empty store; flushed on first Set.
	default:
		return nil, fmt.Errorf("read secrets file: %w", err)
	}

	return s, nil
}

func (s *FileSource) Name() string { return "file" }

func (s *FileSource) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[key]
	if !ok {
		return "", fmt.Errorf("secret not found: %s", key)
	}
	return val, nil
}

func (s *FileSource) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return s.flush()
}

func (s *FileSource) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return s.flush()
}

// Reload re-reads the file, replacing in-memory state.
func (s *FileSource) Reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	fresh := make(map[string]string)
	if err := json.Unmarshal(raw, &fresh); err != nil {
		return fmt.Errorf("parse secrets file: %w", err)
	}

	s.mu.Lock()
	s.data = fresh
	s.mu.Unlock()
	return nil
}

// flush writes the store with owner-only permissions. Callers hold s.mu.
func (s *FileSource) flush() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}
	return os.WriteFile(s.path, raw, 0600)
}
