// Package infra implements infrastructure concerns (filesystem, stores, locking).
package infra

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/trackd/internal/domain"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// FileSystemManagerImpl implements domain.FileSystemManager.
type FileSystemManagerImpl struct{}

// NewFileSystemManager creates a new filesystem manager.
func NewFileSystemManager() domain.FileSystemManager {
	return &FileSystemManagerImpl{}
}

// CreateFile writes data to a temp file and links it into place, so the
// destination is either absent or complete, and never replaces an existing file.
func (fm *FileSystemManagerImpl) CreateFile(path string, data []byte, mode uint32) error {
	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return err
	}

	tmpPath, err := writeTemp(path, data, fileMode(mode, defaultFileMode))
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return domain.ErrCreateRace
		}
		return err
	}
	return nil
}

// WriteFile replaces path atomically (write + sync + rename).
func (fm *FileSystemManagerImpl) WriteFile(path string, data []byte, mode uint32) error {
	if err := os.MkdirAll(filepath.Dir(path), defaultDirMode); err != nil {
		return err
	}
	return atomicWriteFile(path, data, fileMode(mode, defaultFileMode))
}

// Mkdir creates a directory and any missing parents.
func (fm *FileSystemManagerImpl) Mkdir(path string, mode uint32) error {
	info, err := os.Lstat(path)
	if err == nil && !info.IsDir() {
		// A file sitting where a directory belongs; only reached after an overwrite decision.
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return os.MkdirAll(path, fileMode(mode, defaultDirMode))
}

// Remove deletes a file or an empty directory.
func (fm *FileSystemManagerImpl) Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func fileMode(mode uint32, fallback os.FileMode) os.FileMode {
	if mode == 0 {
		return fallback
	}
	return os.FileMode(mode).Perm()
}

// atomicWriteFile writes data using the temp-file + rename pattern.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmpPath, err := writeTemp(path, data, perm)
	if err != nil {
		return err
	}

	info, err := os.Lstat(path)
	if err == nil && info.IsDir() {
		// rename(2) cannot replace a directory; only an empty one may be removed.
		if err := os.Remove(path); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("%w: %s is a non-empty directory", domain.ErrKindMismatch, path)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// writeTemp creates a synced temp file next to path and returns its name.
func writeTemp(path string, data []byte, perm os.FileMode) (string, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".trackd-tmp-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err = tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return "", err
	}

	// Sync to disk before rename
	if err = tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return "", err
	}
	if err = tmpFile.Close(); err != nil {
		return "", err
	}

	if err = os.Chmod(tmpPath, perm); err != nil {
		return "", err
	}

	success = true
	return tmpPath, nil
}

// computeSHA256 calculates SHA256 hash of a file.
func computeSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex SHA256 of data, matching computeSHA256 for files.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Ensure FileSystemManagerImpl implements domain.FileSystemManager.
var _ domain.FileSystemManager = (*FileSystemManagerImpl)(nil)
