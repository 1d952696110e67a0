package domain

import (
	"context"
	"time"
)

// Prober inspects the working tree for managed paths.
// Implementation: streams file contents through SHA-256.
type Prober interface {
	// Probe reports one FileInfo per template. Missing paths are not errors.
	Probe(ctx context.Context, root string, templates []ManagedFileTemplate, project ProjectContext) (map[string]FileInfo, error)
}

// FileSystemManager handles filesystem mutations for the executor.
// All paths are absolute.
type FileSystemManager interface {
	// CreateFile writes a new file, failing with ErrCreateRace if it already exists.
	CreateFile(path string, data []byte, mode uint32) error

	// WriteFile atomically replaces a file's content.
	WriteFile(path string, data []byte, mode uint32) error

	// Mkdir creates a directory and any missing parents.
	Mkdir(path string, mode uint32) error

	// Remove deletes a file or an empty directory. Never recursive.
	Remove(path string) error
}

// HashStore persists the last-reconciled hash of every managed path.
// Implementation: JSON file inside the control directory.
type HashStore interface {
	// All returns a copy of every recorded path -> hash.
	All() map[string]string

	// Record stores hash for path and persists it before returning.
	Record(path, hash string) error

	// Forget removes the record for path.
	Forget(path string) error

	// Reload re-reads the persisted records, discarding the in-memory view.
	Reload() error
}

// TemplateSource supplies the managed file templates in reconciliation order.
type TemplateSource interface {
	Templates() []ManagedFileTemplate
}

// MigrationCatalog answers chain queries over registered migrations.
type MigrationCatalog interface {
	// Path returns the steps from one version to another, in application order.
	Path(family string, from, to int) ([]MigrationDefinition, Direction, error)

	// Latest returns the highest version defined for family.
	Latest(family string) int

	// Families returns every family with registered migrations.
	Families() []string
}

// VersionStore persists the schema version marker of each data family.
type VersionStore interface {
	// Get returns the family's version; absence is version 0.
	Get(family string) (int, error)

	// Set persists the family's version.
	Set(family string, version int) error

	// All returns every recorded marker.
	All() (map[string]int, error)
}

// DocumentStore loads and saves one data family.
// Stores embed their own schema version next to the data so a crash between
// a data write and a marker write can be detected.
type DocumentStore interface {
	// Family returns the family identifier.
	Family() string

	// Load returns the document and its embedded version. Absence is an empty document at version 0.
	Load(ctx context.Context) (Document, int, error)

	// Save replaces the persisted document and version.
	Save(ctx context.Context, doc Document, version int) error
}

// SnapshotStore keeps point-in-time copies of family documents.
type SnapshotStore interface {
	// Save stores a snapshot and returns its location.
	Save(family string, version int, doc Document) (string, error)

	// Latest returns the newest snapshot of a family.
	Latest(family string) (*Snapshot, error)

	// List returns snapshot locations for a family, newest first.
	List(family string) ([]string, error)
}

// Snapshot is a decoded family snapshot.
type Snapshot struct {
	Location string
	Family   string
	Version  int
	Document Document
}

// UnlockFunc releases a held lock.
type UnlockFunc func() error

// Locker guards the control directory against concurrent passes.
type Locker interface {
	// TryLock acquires the lock or fails fast with a *LockError.
	TryLock() (UnlockFunc, error)
}

// ProcessInspector answers questions about other processes.
// Implementation: uses gopsutil for cross-platform support.
type ProcessInspector interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// Name returns the executable name of a PID.
	Name(pid int) (string, error)

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// Executor applies a reconciliation plan.
type Executor interface {
	Execute(ctx context.Context, plan *ReconciliationPlan, decisions ReconciliationDecisions, root string) *ReconciliationResult
}

// Migrator walks data families between schema versions.
type Migrator interface {
	// Migrate moves one family to target.
	Migrate(ctx context.Context, family string, target int) (*MigrationResult, error)

	// MigrateAll moves several families, independently.
	MigrateAll(ctx context.Context, targets map[string]int) ([]*MigrationResult, error)

	// Current returns the version a family's data is at.
	Current(ctx context.Context, family string) (int, error)

	// Restore writes the newest snapshot of a family back.
	Restore(ctx context.Context, family string) (*Snapshot, error)
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// DaemonRegistry records the background daemon of a control directory so
// status can find it. Implementation: JSON file in the state directory.
type DaemonRegistry interface {
	// Register saves the daemon's PID and start time.
	Register(d DaemonRecord) error

	// UpdateHeartbeat stamps the time of the latest completed pass.
	UpdateHeartbeat(pass time.Time) error

	// Get returns the registered daemon, or nil when none is registered.
	Get() (*DaemonRecord, error)

	// IsAlive reports whether the registered daemon's PID is running.
	IsAlive() (bool, error)

	// Clear removes the registration.
	Clear() error
}
