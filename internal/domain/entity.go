// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import "time"

// FileKind distinguishes managed files from managed directories.
type FileKind string

const (
	KindFile      FileKind = "file"
	KindDirectory FileKind = "directory"
)

// OverwritePolicy controls what the reconciler may do with a managed path.
type OverwritePolicy string

const (
	// PolicyAlwaysManaged keeps the path aligned with its template on every pass.
	PolicyAlwaysManaged OverwritePolicy = "always-managed"
	// PolicyCreateOnly seeds the path once; a human deleting it afterwards is respected.
	PolicyCreateOnly OverwritePolicy = "create-only"
	// PolicyNeverOverwriteIfPresent is optional content: absence is acceptable.
	PolicyNeverOverwriteIfPresent OverwritePolicy = "never-overwrite-if-present"
)

// ProjectContext is the project metadata content generators may depend on.
// Supplied by configuration loading.
type ProjectContext struct {
	ID            string
	Name          string
	Key           string // Short issue prefix, e.g. "TRK"
	Owner         string
	DefaultBranch string
}

// Field returns a context field by its generator-facing name.
func (c ProjectContext) Field(name string) string {
	switch name {
	case "id":
		return c.ID
	case "name":
		return c.Name
	case "key":
		return c.Key
	case "owner":
		return c.Owner
	case "default_branch":
		return c.DefaultBranch
	}
	return ""
}

// ContentGenerator produces the canonical bytes for a managed file.
// Must be pure and deterministic for a given context.
type ContentGenerator func(ctx ProjectContext) ([]byte, error)

// ManagedFileTemplate declares one path the tool manages.
type ManagedFileTemplate struct {
	Path     string // Relative to the control root, slash separated
	Kind     FileKind
	Policy   OverwritePolicy
	Mode     uint32   // Permission bits; 0 means 0644 for files, 0755 for directories
	Required []string // ProjectContext fields the generator needs
	Generate ContentGenerator
}

// IsDir reports whether the template declares a directory.
func (t ManagedFileTemplate) IsDir() bool {
	return t.Kind == KindDirectory
}

// FileInfo is what a probe observed for one managed path.
type FileInfo struct {
	Path               string
	Exists             bool
	IsDir              bool
	ActualHash         string // Empty when missing or a directory
	ExpectedHash       string // Empty for directories
	LastReconciledHash string // Empty when no record exists
	Expected           []byte // Generated canonical content
}

// Action is the planner's classification of a managed path.
type Action string

const (
	ActionCreate    Action = "create"
	ActionRestore   Action = "restore"
	ActionReset     Action = "reset"
	ActionUnchanged Action = "unchanged"
)

// DirectoryMarker is recorded as the last-reconciled hash of a managed directory.
const DirectoryMarker = "directory"

// PlanEntry ties a classified path to its template and generated content.
type PlanEntry struct {
	Template ManagedFileTemplate
	Info     FileInfo
	Content  []byte
	Action   Action
}

// Disposition is a human decision for a path in to_reset.
type Disposition string

const (
	KeepLocal Disposition = "keep-local"
	Overwrite Disposition = "overwrite"
	Delete    Disposition = "delete"
)

// ReconciliationDecisions maps to_reset paths to a disposition.
// A missing entry means keep-local.
type ReconciliationDecisions map[string]Disposition

// For returns the disposition for path, defaulting to keep-local.
func (d ReconciliationDecisions) For(path string) Disposition {
	if disp, ok := d[path]; ok && disp != "" {
		return disp
	}
	return KeepLocal
}

// DaemonRecord is the registration of a running daemon.
type DaemonRecord struct {
	PID           int       `json:"pid"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Interval      string    `json:"interval"`
	AppVersion    string    `json:"app_version,omitempty"`
}

// PathFailure records why an operation on one path failed.
type PathFailure struct {
	Path string
	Op   Action
	Err  error
}

// ReconciliationResult captures what happened during one execute call.
type ReconciliationResult struct {
	Created     []string
	Restored    []string
	Overwritten []string
	Kept        []string
	Deleted     []string
	Failed      []PathFailure
	Err         error // First hard error if execution stopped early
	ExecutedAt  time.Time
	DurationMs  int64
}

// Changed reports whether any path was written or removed.
func (r *ReconciliationResult) Changed() bool {
	return len(r.Created)+len(r.Restored)+len(r.Overwritten)+len(r.Deleted) > 0
}

// OK reports whether every operation succeeded and nothing aborted the run.
func (r *ReconciliationResult) OK() bool {
	return r.Err == nil && len(r.Failed) == 0
}
