package infra

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// FileLocker implements domain.Locker with flock(2) on a lock file.
// The kernel drops the lock when the holder exits, so there are no stale locks;
// the PID written into the file only serves the busy message.
type FileLocker struct {
	path      string
	processes domain.ProcessInspector
}

// NewFileLocker creates a locker for the lock file at path.
func NewFileLocker(path string, pi domain.ProcessInspector) *FileLocker {
	return &FileLocker{path: path, processes: pi}
}

// TryLock acquires an exclusive lock without blocking.
func (l *FileLocker) TryLock() (domain.UnlockFunc, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create control directory: %w", err)
	}

	lockFile, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lockFile.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, l.busyError()
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	// Record holder for diagnostics
	if err := lockFile.Truncate(0); err == nil {
		_, _ = lockFile.WriteAt([]byte(strconv.Itoa(l.processes.GetCurrentPID())+"\n"), 0)
	}

	return func() error {
		_ = lockFile.Truncate(0)
		if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_UN); err != nil {
			lockFile.Close()
			return fmt.Errorf("failed to release lock: %w", err)
		}
		return lockFile.Close()
	}, nil
}

// busyError describes the current holder as far as it can be determined.
func (l *FileLocker) busyError() error {
	lockErr := &domain.LockError{Path: l.path, Err: domain.ErrBusy}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return lockErr
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return lockErr
	}

	lockErr.HolderPID = pid
	if l.processes.IsRunning(pid) {
		if name, err := l.processes.Name(pid); err == nil {
			lockErr.HolderName = name
		}
	}
	return lockErr
}

// Ensure FileLocker implements domain.Locker.
var _ domain.Locker = (*FileLocker)(nil)
