package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// JSONStore implements KV using a JSON file holding a flat string map
type JSONStore struct {
	filename string
	data     map[string]string
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewJSONStore creates or opens a JSON-backed store
func NewJSONStore(filename string, logger *slog.Logger) (*JSONStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store := &JSONStore{
		filename: filename,
		data:     map[string]string{},
		logger:   logger,
	}

	// Try to load existing file
	if _, err := os.Stat(filename); err == nil {
		if err := store.load(); err != nil {
			return nil, fmt.Errorf("failed to load store: %w", err)
		}
		logger.Debug("loaded json store", "path", filename, "keys", len(store.data))
	}

	return store, nil
}

func (s *JSONStore) load() error {
	data, err := os.ReadFile(s.filename)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, &s.data); err != nil {
		return err
	}
	// A file holding null leaves the map nil
	if s.data == nil {
		s.data = map[string]string{}
	}
	return nil
}

func (s *JSONStore) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return os.WriteFile(s.filename, data, 0644)
}

// Get returns the value for key
func (s *JSONStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(value), true, nil
}

// Set stores value under key and rewrites the file
func (s *JSONStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = string(value)
	if err := s.save(); err != nil {
		return fmt.Errorf("failed to save store: %w", err)
	}
	return nil
}

// Close closes the store
func (s *JSONStore) Close() error {
	// Every Set is already on disk
	return nil
}
