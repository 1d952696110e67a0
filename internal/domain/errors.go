package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrMissingContext  = errors.New("missing project context")
	ErrBusy            = errors.New("control directory busy")
	ErrChainGap        = errors.New("migration chain has a gap")
	ErrChainDuplicate  = errors.New("duplicate migration version")
	ErrChainInvalid    = errors.New("invalid migration definition")
	ErrNoPath          = errors.New("no migration path")
	ErrTransform       = errors.New("migration transform failed")
	ErrInvalidDecision = errors.New("invalid reconciliation decision")
	ErrCreateRace      = errors.New("path appeared after probe")
	ErrKindMismatch    = errors.New("path kind does not match template")
)

// MissingContextError is a ContextError: generators needed project fields that were empty.
// Callers recover by prompting or applying defaults.
type MissingContextError struct {
	Fields []string // Sorted, unique
	Paths  []string // Templates that could not be generated
}

// NewMissingContextError creates an error for one template.
func NewMissingContextError(path string, fields ...string) *MissingContextError {
	e := &MissingContextError{}
	e.add(path, fields)
	return e
}

// Merge folds other into e.
func (e *MissingContextError) Merge(other *MissingContextError) {
	if other == nil {
		return
	}
	for _, p := range other.Paths {
		e.add(p, other.Fields)
	}
}

func (e *MissingContextError) add(path string, fields []string) {
	seen := make(map[string]bool, len(e.Fields))
	for _, f := range e.Fields {
		seen[f] = true
	}
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			e.Fields = append(e.Fields, f)
		}
	}
	sort.Strings(e.Fields)

	for _, p := range e.Paths {
		if p == path {
			return
		}
	}
	e.Paths = append(e.Paths, path)
	sort.Strings(e.Paths)
}

func (e *MissingContextError) Error() string {
	return fmt.Sprintf("missing project context %s (needed by %s)",
		strings.Join(e.Fields, ", "), strings.Join(e.Paths, ", "))
}

func (e *MissingContextError) Unwrap() error { return ErrMissingContext }

// FilesystemError is a per-path I/O failure recorded in a result.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// LockError reports that another process holds the control directory.
type LockError struct {
	Path       string
	HolderPID  int
	HolderName string
	Err        error
}

func (e *LockError) Error() string {
	switch {
	case e.HolderPID > 0 && e.HolderName != "":
		return fmt.Sprintf("%v: lock %s held by pid %d (%s)", e.Err, e.Path, e.HolderPID, e.HolderName)
	case e.HolderPID > 0:
		return fmt.Sprintf("%v: lock %s held by pid %d", e.Err, e.Path, e.HolderPID)
	default:
		return fmt.Sprintf("%v: lock %s", e.Err, e.Path)
	}
}

func (e *LockError) Unwrap() error { return e.Err }

// ChainError reports an unsatisfiable migration chain.
type ChainError struct {
	Family string
	From   int
	To     int
	Err    error // ErrChainGap, ErrChainDuplicate, ErrChainInvalid or ErrNoPath
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("%v: family %q between %d and %d", e.Err, e.Family, e.From, e.To)
}

func (e *ChainError) Unwrap() error { return e.Err }

// TransformError reports a migration step that rejected its input.
type TransformError struct {
	Migration MigrationID
	Direction Direction
	Err       error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("%v: %s (%s): %v", ErrTransform, e.Migration, e.Direction, e.Err)
}

func (e *TransformError) Unwrap() []error { return []error{ErrTransform, e.Err} }
