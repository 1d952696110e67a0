package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// FileVersionStore implements domain.VersionStore as a JSON map of family -> version.
// Safe for concurrent use by families migrating in parallel.
type FileVersionStore struct {
	mu   sync.Mutex
	path string
}

// NewFileVersionStore creates a marker store at path.
func NewFileVersionStore(path string) *FileVersionStore {
	return &FileVersionStore{path: path}
}

// Get returns a family's version, 0 when no marker exists.
func (s *FileVersionStore) Get(family string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	markers, err := s.read()
	if err != nil {
		return 0, err
	}
	return markers[family], nil
}

// Set persists a family's version.
func (s *FileVersionStore) Set(family string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	markers, err := s.read()
	if err != nil {
		return err
	}
	if version == 0 {
		delete(markers, family)
	} else {
		markers[family] = version
	}

	data, err := json.MarshalIndent(markers, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := atomicWriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write version markers: %w", err)
	}
	return nil
}

// All returns every recorded marker.
func (s *FileVersionStore) All() (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileVersionStore) read() (map[string]int, error) {
	markers := make(map[string]int)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return markers, nil
		}
		return nil, fmt.Errorf("failed to read version markers: %w", err)
	}
	if err := json.Unmarshal(data, &markers); err != nil {
		return nil, fmt.Errorf("failed to parse version markers %s: %w", s.path, err)
	}
	if markers == nil {
		markers = make(map[string]int)
	}
	return markers, nil
}

// Ensure FileVersionStore implements domain.VersionStore.
var _ domain.VersionStore = (*FileVersionStore)(nil)
