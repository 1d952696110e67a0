package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// FileDaemonRegistry implements domain.DaemonRegistry using a JSON file in
// the state directory.
type FileDaemonRegistry struct {
	path string
	pi   domain.ProcessInspector
	mu   sync.Mutex
}

// NewFileDaemonRegistry creates a registry stored at path.
func NewFileDaemonRegistry(path string, pi domain.ProcessInspector) *FileDaemonRegistry {
	return &FileDaemonRegistry{path: path, pi: pi}
}

// Path returns the registry file location.
func (r *FileDaemonRegistry) Path() string {
	return r.path
}

// Register saves the daemon's PID and start time.
func (r *FileDaemonRegistry) Register(d domain.DaemonRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d.StartedAt.IsZero() {
		d.StartedAt = time.Now()
	}
	return r.write(&d)
}

// UpdateHeartbeat stamps the time of the latest completed pass.
func (r *FileDaemonRegistry) UpdateHeartbeat(pass time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.read()
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no daemon registered at %s", r.path)
	}
	rec.LastHeartbeat = pass
	return r.write(rec)
}

// Get returns the registered daemon, or nil when none is registered.
func (r *FileDaemonRegistry) Get() (*domain.DaemonRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

// IsAlive reports whether the registered daemon's PID is running.
func (r *FileDaemonRegistry) IsAlive() (bool, error) {
	rec, err := r.Get()
	if err != nil || rec == nil {
		return false, err
	}
	return r.pi.IsRunning(rec.PID), nil
}

// Clear removes the registration. A missing file is not an error.
func (r *FileDaemonRegistry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (r *FileDaemonRegistry) read() (*domain.DaemonRecord, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var rec domain.DaemonRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse daemon registry %s: %w", r.path, err)
	}
	return &rec, nil
}

func (r *FileDaemonRegistry) write(rec *domain.DaemonRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return err
	}
	return atomicWriteFile(r.path, data, 0600)
}

// Ensure FileDaemonRegistry implements domain.DaemonRegistry.
var _ domain.DaemonRegistry = (*FileDaemonRegistry)(nil)
