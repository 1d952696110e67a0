// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"os"
	"path/filepath"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// Repo is a throwaway repository with a trackd control directory.
type Repo struct {
	Dir  string
	Root string // Control directory
}

// NewRepo describes a repository named name under parent.
func NewRepo(parent, name string) *Repo {
	dir := filepath.Join(parent, name)
	return &Repo{Dir: dir, Root: filepath.Join(dir, ".trackd")}
}

// Project is the context the repository's templates render with.
func (r *Repo) Project() domain.ProjectContext {
	return domain.ProjectContext{
		ID:            "7c0d5a34-54a4-4b8e-9f57-6f0b9c1d2e3f",
		Name:          filepath.Base(r.Dir),
		Key:           "DEMO",
		Owner:         "platform",
		DefaultBranch: "main",
	}
}

// Create makes the repository directory. The control directory is left to init.
func (r *Repo) Create() error {
	return os.MkdirAll(r.Dir, 0755)
}

// Path returns the absolute path of a control-directory relative path.
func (r *Repo) Path(rel string) string {
	return filepath.Join(r.Root, filepath.FromSlash(rel))
}

// Write replaces a file as a human would.
func (r *Repo) Write(rel, content string) error {
	p := r.Path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(content), 0644)
}

// Read returns a file's content.
func (r *Repo) Read(rel string) (string, error) {
	data, err := os.ReadFile(r.Path(rel))
	return string(data), err
}

// Exists reports whether rel exists.
func (r *Repo) Exists(rel string) bool {
	_, err := os.Stat(r.Path(rel))
	return err == nil
}

// LegacyIssues is issues data written before schema versioning.
const LegacyIssues = `{
  "issues": [
    {"id": "DEMO-1", "title": "Login fails", "state": "open", "labels": "bug,auth"},
    {"id": "DEMO-2", "title": "Write docs", "state": "closed", "labels": ""}
  ]
}
`

// LegacyBoards is boards data written before schema versioning.
const LegacyBoards = `boards:
  - name: Sprint
    columns: todo,doing,done
`

// WriteLegacyData seeds unversioned data families.
func (r *Repo) WriteLegacyData() error {
	if err := r.Write("data/issues.json", LegacyIssues); err != nil {
		return err
	}
	return r.Write("data/boards.yaml", LegacyBoards)
}
