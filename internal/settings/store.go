// Package settings persists small namespaced preference values as JSON.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store is a flat key to raw-JSON map backed by one file. Reads serve from
// memory; every Set rewrites the file.
type Store struct {
	path string

	mu     sync.Mutex
	values map[string]json.RawMessage
}

// Open loads the store at path, tolerating a missing file. A corrupt file
// is treated as empty rather than fatal: preferences are always recoverable
// from defaults.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: map[string]json.RawMessage{}}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read settings %q: %w", path, err)
	}

	if err := json.Unmarshal(content, &s.values); err != nil {
		s.values = map[string]json.RawMessage{}
	}
	return s, nil
}

// DefaultPath resolves the store location under XDG config conventions.
func DefaultPath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "parlo", "settings.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for settings: %w", err)
	}
	return filepath.Join(home, ".config", "parlo", "settings.json"), nil
}

// Get returns the raw value stored under key.
func (s *Store) Get(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

// Set stores value under key and persists the whole map.
func (s *Store) Set(key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	encoded, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := os.WriteFile(s.path, append(encoded, '\n'), 0o600); err != nil {
		return fmt.Errorf("write settings %q: %w", s.path, err)
	}
	return nil
}
