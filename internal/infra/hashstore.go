package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/eliteGoblin/trackd/internal/domain"
)

const hashStoreFormat = 1

// hashStoreFile is the on-disk layout of the last-reconciled hash store.
type hashStoreFile struct {
	Version   int               `json:"version"`
	UpdatedAt int64             `json:"updated_at"`
	Hashes    map[string]string `json:"hashes"`
}

// FileHashStore implements domain.HashStore using a JSON file.
// Every mutation is written through atomically.
type FileHashStore struct {
	mu     sync.Mutex
	path   string
	hashes map[string]string
}

// NewFileHashStore loads the store at path. A missing file is an empty store.
func NewFileHashStore(path string) (*FileHashStore, error) {
	s := &FileHashStore{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the store file.
func (s *FileHashStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hashes := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.hashes = hashes
			return nil
		}
		return fmt.Errorf("failed to read hash store: %w", err)
	}

	var file hashStoreFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse hash store %s: %w", s.path, err)
	}
	if file.Version > hashStoreFormat {
		return fmt.Errorf("hash store %s has format %d, newer than supported %d", s.path, file.Version, hashStoreFormat)
	}
	for k, v := range file.Hashes {
		hashes[k] = v
	}
	s.hashes = hashes
	return nil
}

// Path returns the store file location.
func (s *FileHashStore) Path() string {
	return s.path
}

// All returns a copy of every record.
func (s *FileHashStore) All() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]string, len(s.hashes))
	for k, v := range s.hashes {
		out[k] = v
	}
	return out
}

// Record stores hash for path.
func (s *FileHashStore) Record(path, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.hashes[path]
	if had && prev == hash {
		return nil
	}
	s.hashes[path] = hash
	if err := s.flush(); err != nil {
		if had {
			s.hashes[path] = prev
		} else {
			delete(s.hashes, path)
		}
		return err
	}
	return nil
}

// Forget removes the record for path.
func (s *FileHashStore) Forget(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.hashes[path]
	if !had {
		return nil
	}
	delete(s.hashes, path)
	if err := s.flush(); err != nil {
		s.hashes[path] = prev
		return err
	}
	return nil
}

// flush writes the store atomically (write + rename). Caller holds mu.
func (s *FileHashStore) flush() error {
	data, err := json.MarshalIndent(hashStoreFile{
		Version:   hashStoreFormat,
		UpdatedAt: time.Now().Unix(),
		Hashes:    s.hashes,
	}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := atomicWriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write hash store: %w", err)
	}
	return nil
}

// Ensure FileHashStore implements domain.HashStore.
var _ domain.HashStore = (*FileHashStore)(nil)
