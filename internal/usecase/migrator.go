package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// MigratorImpl implements domain.Migrator.
type MigratorImpl struct {
	catalog   domain.MigrationCatalog
	stores    map[string]domain.DocumentStore
	versions  domain.VersionStore
	snapshots domain.SnapshotStore
	logger    *zap.Logger
}

// NewMigrator creates a migrator over the given family stores.
func NewMigrator(
	catalog domain.MigrationCatalog,
	versions domain.VersionStore,
	stores []domain.DocumentStore,
	logger *zap.Logger,
) *MigratorImpl {
	m := &MigratorImpl{
		catalog:  catalog,
		stores:   make(map[string]domain.DocumentStore, len(stores)),
		versions: versions,
		logger:   logger,
	}
	for _, s := range stores {
		m.stores[s.Family()] = s
	}
	return m
}

// WithSnapshots takes a snapshot of each family before its first step.
func (m *MigratorImpl) WithSnapshots(s domain.SnapshotStore) *MigratorImpl {
	m.snapshots = s
	return m
}

// Current returns the version a family is at, preferring the version stored
// with the data over the marker. Nothing is written.
func (m *MigratorImpl) Current(ctx context.Context, family string) (int, error) {
	store, ok := m.stores[family]
	if !ok {
		return 0, fmt.Errorf("unknown data family %q", family)
	}
	_, version, err := store.Load(ctx)
	return version, err
}

// load reads a family together with its marker. Nothing is written.
func (m *MigratorImpl) load(ctx context.Context, family string) (domain.Document, int, int, error) {
	store, ok := m.stores[family]
	if !ok {
		return nil, 0, 0, fmt.Errorf("unknown data family %q", family)
	}

	marker, err := m.versions.Get(family)
	if err != nil {
		return nil, 0, 0, err
	}
	doc, stored, err := store.Load(ctx)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to load %s: %w", family, err)
	}
	return doc, stored, marker, nil
}

// repairMarker brings a marker a crash left behind the data back in line.
func (m *MigratorImpl) repairMarker(family string, marker, stored int) error {
	if marker == stored {
		return nil
	}
	m.logger.Warn("version marker disagrees with stored data, repairing marker",
		zap.String("family", family),
		zap.Int("marker", marker),
		zap.Int("stored", stored))
	return m.versions.Set(family, stored)
}

// Migrate moves family to target one persisted step at a time.
// Chain and load failures are returned before any data changes; step failures
// end the run with a partial-failure result.
func (m *MigratorImpl) Migrate(ctx context.Context, family string, target int) (*domain.MigrationResult, error) {
	start := time.Now()

	doc, current, marker, err := m.load(ctx, family)
	if err != nil {
		return nil, err
	}

	steps, direction, err := m.catalog.Path(family, current, target)
	if err != nil {
		return nil, err
	}
	if err := m.repairMarker(family, marker, current); err != nil {
		return nil, err
	}

	result := &domain.MigrationResult{
		Family:     family,
		From:       current,
		To:         current,
		Target:     target,
		Direction:  direction,
		Applied:    make([]domain.MigrationID, 0, len(steps)),
		Status:     domain.MigrationSuccess,
		LastGood:   current,
		ExecutedAt: start,
	}
	defer func() { result.DurationMs = time.Since(start).Milliseconds() }()

	if len(steps) == 0 {
		return result, nil
	}

	if m.snapshots != nil {
		loc, err := m.snapshots.Save(family, current, doc)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot %s before migrating: %w", family, err)
		}
		result.Snapshot = loc
	}

	store := m.stores[family]
	// A single step is never interrupted; cancellation is checked between steps.
	persistCtx := context.WithoutCancel(ctx)

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			m.fail(result, fmt.Errorf("migration interrupted at version %d: %w", result.To, err))
			break
		}

		transform, next := step.Forward, step.To
		if direction == domain.DirectionDown {
			transform, next = step.Backward, step.From
		}

		out, err := runTransform(transform, doc)
		if err != nil {
			m.fail(result, &domain.TransformError{Migration: step.ID(), Direction: direction, Err: err})
			break
		}

		if err := store.Save(persistCtx, out, next); err != nil {
			m.fail(result, &domain.FilesystemError{Op: "save", Path: family, Err: err})
			break
		}
		// Data is at next now; a failed marker write is repaired by the next load.
		result.To = next
		result.LastGood = next
		result.Applied = append(result.Applied, step.ID())
		doc = out

		if err := m.versions.Set(family, next); err != nil {
			m.fail(result, &domain.FilesystemError{Op: "set-version", Path: family, Err: err})
			break
		}

		m.logger.Info("applied migration",
			zap.String("migration", step.ID().String()),
			zap.String("name", step.Name),
			zap.String("direction", string(direction)))
	}

	return result, nil
}

// Restore writes the newest snapshot of family back, data first, then the
// marker. The snapshot is not consumed.
func (m *MigratorImpl) Restore(ctx context.Context, family string) (*domain.Snapshot, error) {
	store, ok := m.stores[family]
	if !ok {
		return nil, fmt.Errorf("unknown data family %q", family)
	}
	if m.snapshots == nil {
		return nil, errors.New("snapshots are not enabled")
	}

	snap, err := m.snapshots.Latest(family)
	if err != nil {
		return nil, err
	}
	if err := store.Save(context.WithoutCancel(ctx), snap.Document, snap.Version); err != nil {
		return nil, &domain.FilesystemError{Op: "save", Path: family, Err: err}
	}
	if err := m.versions.Set(family, snap.Version); err != nil {
		return nil, &domain.FilesystemError{Op: "set-version", Path: family, Err: err}
	}

	m.logger.Info("restored family from snapshot",
		zap.String("family", family),
		zap.Int("version", snap.Version),
		zap.String("snapshot", snap.Location))
	return snap, nil
}

func (m *MigratorImpl) fail(result *domain.MigrationResult, err error) {
	result.Status = domain.MigrationPartialFailure
	result.Err = err
	m.logger.Error("migration stopped",
		zap.String("family", result.Family),
		zap.Int("last_good", result.LastGood),
		zap.Int("target", result.Target),
		zap.Error(err))
}

// runTransform applies t to a private copy of doc. A panicking transform is
// reported as an error.
func runTransform(t domain.Transform, doc domain.Document) (out domain.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("transform panicked: %v", r)
		}
	}()
	out, err = t(doc.Clone())
	if err == nil && out == nil {
		out = domain.Document{}
	}
	return out, err
}

// MigrateAll migrates independent families concurrently. Results are sorted by
// family; pre-condition failures are joined into the returned error.
func (m *MigratorImpl) MigrateAll(ctx context.Context, targets map[string]int) ([]*domain.MigrationResult, error) {
	var (
		mu      sync.Mutex
		results = make([]*domain.MigrationResult, 0, len(targets))
		errs    []error
		g       errgroup.Group
	)

	for family, target := range targets {
		family, target := family, target
		g.Go(func() error {
			res, err := m.Migrate(ctx, family, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", family, err))
				return nil
			}
			results = append(results, res)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Family < results[j].Family })
	return results, errors.Join(errs...)
}

// Ensure MigratorImpl implements domain.Migrator.
var _ domain.Migrator = (*MigratorImpl)(nil)
