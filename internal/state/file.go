// internal/state/file.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is a JSON-file-backed key-value store. The whole file is one
// JSON object of string values, rewritten atomically on every Set.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore creates a new file-backed store at the given file path.
// The file and its directory are created on the first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the file path used by this store.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value stored under key.
func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	values, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set stores value under key, preserving all other keys.
func (s *FileStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStore) Close() error { return nil }

// load reads the JSON file. A missing file is an empty store.
func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}

	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("unmarshal store file: %w", err)
	}
	return values, nil
}

// save writes the map to disk using atomic write (temp file + rename).
func (s *FileStore) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp store file: %w", err)
	}
	return nil
}
