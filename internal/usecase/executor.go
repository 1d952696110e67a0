package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// ExecutorImpl implements domain.Executor.
type ExecutorImpl struct {
	fsManager domain.FileSystemManager
	hashes    domain.HashStore
	logger    *zap.Logger
}

// NewExecutor creates a new reconciliation executor.
func NewExecutor(fs domain.FileSystemManager, hashes domain.HashStore, logger *zap.Logger) domain.Executor {
	return &ExecutorImpl{
		fsManager: fs,
		hashes:    hashes,
		logger:    logger,
	}
}

// operation is one filesystem mutation scheduled by the executor.
type operation struct {
	path   string
	action domain.Action      // create, restore or reset
	disp   domain.Disposition // only for reset
}

// errHashStore marks failures to persist a record; these stop the run.
var errHashStore = errors.New("hash store")

// Execute applies the plan: creations, then restores, then resets (overwrites
// before deletes). A failing path is recorded and the run moves on.
func (e *ExecutorImpl) Execute(
	ctx context.Context,
	plan *domain.ReconciliationPlan,
	decisions domain.ReconciliationDecisions,
	root string,
) *domain.ReconciliationResult {
	start := time.Now()
	result := &domain.ReconciliationResult{
		Created:     make([]string, 0),
		Restored:    make([]string, 0),
		Overwritten: make([]string, 0),
		Kept:        make([]string, 0),
		Deleted:     make([]string, 0),
		Failed:      make([]domain.PathFailure, 0),
		ExecutedAt:  start,
	}
	defer func() { result.DurationMs = time.Since(start).Milliseconds() }()

	if err := plan.ValidateDecisions(decisions); err != nil {
		result.Err = err
		return result
	}

	ops := e.schedule(plan, decisions, result)

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			result.Err = fmt.Errorf("reconciliation interrupted before %s: %w", op.path, err)
			e.logger.Warn("reconciliation interrupted", zap.String("next", op.path), zap.Error(err))
			return result
		}

		entry := plan.Entries[op.path]
		err := e.apply(root, entry, op)
		if errors.Is(err, errHashStore) {
			result.Err = err
			e.logger.Error("failed to persist reconciled hash, stopping",
				zap.String("path", op.path),
				zap.Error(err))
			return result
		}
		if err != nil {
			e.logger.Warn("managed path operation failed",
				zap.String("path", op.path),
				zap.String("action", string(op.action)),
				zap.Error(err))
			result.Failed = append(result.Failed, domain.PathFailure{Path: op.path, Op: op.action, Err: err})
			continue
		}

		switch {
		case op.action == domain.ActionCreate:
			result.Created = append(result.Created, op.path)
		case op.action == domain.ActionRestore:
			result.Restored = append(result.Restored, op.path)
		case op.disp == domain.Overwrite:
			result.Overwritten = append(result.Overwritten, op.path)
		case op.disp == domain.Delete:
			result.Deleted = append(result.Deleted, op.path)
		}
		e.logger.Info("reconciled managed path",
			zap.String("path", op.path),
			zap.String("action", string(op.action)),
			zap.String("decision", string(op.disp)))
	}

	if err := e.refreshUnchanged(plan); err != nil {
		result.Err = err
	}

	return result
}

// schedule orders operations and reports kept resets directly.
func (e *ExecutorImpl) schedule(
	plan *domain.ReconciliationPlan,
	decisions domain.ReconciliationDecisions,
	result *domain.ReconciliationResult,
) []operation {
	ops := make([]operation, 0, len(plan.ToCreate)+len(plan.ToRestore)+len(plan.ToReset))

	for _, p := range plan.ToCreate {
		ops = append(ops, operation{path: p, action: domain.ActionCreate})
	}
	for _, p := range plan.ToRestore {
		ops = append(ops, operation{path: p, action: domain.ActionRestore})
	}

	var deletes []operation
	for _, p := range plan.ToReset {
		switch disp := decisions.For(p); disp {
		case domain.Overwrite:
			ops = append(ops, operation{path: p, action: domain.ActionReset, disp: disp})
		case domain.Delete:
			deletes = append(deletes, operation{path: p, action: domain.ActionReset, disp: disp})
		default:
			e.logger.Info("keeping local edit", zap.String("path", p))
			result.Kept = append(result.Kept, p)
		}
	}
	return append(ops, deletes...)
}

// apply performs one operation and records its outcome in the hash store.
func (e *ExecutorImpl) apply(root string, entry domain.PlanEntry, op operation) error {
	tmpl := entry.Template
	full := filepath.Join(root, filepath.FromSlash(op.path))

	var (
		fsOp string
		err  error
	)
	switch {
	case op.disp == domain.Delete:
		fsOp = "delete"
		err = e.fsManager.Remove(full)
	case tmpl.IsDir():
		fsOp = "mkdir"
		err = e.fsManager.Mkdir(full, tmpl.Mode)
	case op.action == domain.ActionCreate:
		fsOp = "create"
		err = e.fsManager.CreateFile(full, entry.Content, tmpl.Mode)
	default:
		fsOp = "write"
		err = e.fsManager.WriteFile(full, entry.Content, tmpl.Mode)
	}
	if err != nil {
		return &domain.FilesystemError{Op: fsOp, Path: op.path, Err: err}
	}

	if op.disp == domain.Delete {
		err = e.hashes.Forget(op.path)
	} else {
		err = e.hashes.Record(op.path, recordedHash(entry))
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errHashStore, op.path, err)
	}
	return nil
}

// refreshUnchanged records the hash of paths already matching their template,
// so a later template change to them is seen as drift rather than an edit.
func (e *ExecutorImpl) refreshUnchanged(plan *domain.ReconciliationPlan) error {
	for _, p := range plan.Unchanged {
		entry := plan.Entries[p]
		info := entry.Info
		if !info.Exists || entry.Template.IsDir() != info.IsDir {
			continue
		}
		if !info.IsDir && info.ActualHash != info.ExpectedHash {
			continue
		}
		want := recordedHash(entry)
		if info.LastReconciledHash == want {
			continue
		}
		if err := e.hashes.Record(p, want); err != nil {
			return fmt.Errorf("%w: %s: %v", errHashStore, p, err)
		}
	}
	return nil
}

func recordedHash(entry domain.PlanEntry) string {
	if entry.Template.IsDir() {
		return domain.DirectoryMarker
	}
	return entry.Info.ExpectedHash
}

// Ensure ExecutorImpl implements domain.Executor.
var _ domain.Executor = (*ExecutorImpl)(nil)
