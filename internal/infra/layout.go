package infra

import (
	"os"
	"path/filepath"
)

// DefaultControlDirName is the control directory created under a repository root.
const DefaultControlDirName = ".trackd"

// Layout holds the fixed locations inside a control directory.
type Layout struct {
	Root          string
	LockPath      string
	StateDir      string
	HashStorePath string
	VersionsPath  string
	DaemonPath    string
	SnapshotDir   string
	DataDir       string
	CacheDir      string
	ConfigPath    string
}

// NewLayout returns the layout of the control directory at root.
func NewLayout(root string) *Layout {
	state := filepath.Join(root, "state")
	return &Layout{
		Root:          root,
		LockPath:      filepath.Join(root, ".lock"),
		StateDir:      state,
		HashStorePath: filepath.Join(state, "reconciled.json"),
		VersionsPath:  filepath.Join(state, "versions.json"),
		DaemonPath:    filepath.Join(state, "daemon.json"),
		SnapshotDir:   filepath.Join(state, "snapshots"),
		DataDir:       filepath.Join(root, "data"),
		CacheDir:      filepath.Join(root, "cache"),
		ConfigPath:    filepath.Join(root, "config.yaml"),
	}
}

// ResolveRoot picks the control directory for an invocation.
// An explicit path wins; otherwise the nearest ancestor of start that already
// has a control directory, falling back to one under start itself.
func ResolveRoot(explicit, start string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		start = wd
	}
	start, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for dir := start; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, DefaultControlDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		if filepath.Dir(dir) == dir {
			break
		}
	}
	return filepath.Join(start, DefaultControlDirName), nil
}
