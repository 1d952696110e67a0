// Package daemon implements the background reconciliation loop.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/trackd/internal/domain"
	"github.com/eliteGoblin/trackd/internal/usecase"
)

// ErrMigrationIncomplete is returned when a family could not reach its
// latest version at startup.
var ErrMigrationIncomplete = errors.New("data migration incomplete")

// DefaultInterval is the time between reconciliation passes.
const DefaultInterval = 5 * time.Minute

// Reconciler is the part of usecase.Controller the watcher drives.
type Reconciler interface {
	Reconcile(ctx context.Context, project domain.ProjectContext, decide usecase.DecisionFunc) (*domain.ReconciliationPlan, *domain.ReconciliationResult, error)
	Migrate(ctx context.Context, targets map[string]int) ([]*domain.MigrationResult, error)
}

// ProjectSource returns the project metadata for the next pass. It is
// called before every pass so config edits are picked up.
type ProjectSource func() (domain.ProjectContext, error)

// WatcherConfig holds watcher daemon configuration.
type WatcherConfig struct {
	Interval   time.Duration // How often to reconcile
	AppVersion string
}

// DefaultWatcherConfig returns default watcher configuration.
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{Interval: DefaultInterval}
}

// Watcher migrates data on startup, then keeps managed files reconciled.
// Ambiguous paths always keep their local content.
type Watcher struct {
	config     WatcherConfig
	reconciler Reconciler
	project    ProjectSource
	registry   domain.DaemonRegistry
	pi         domain.ProcessInspector
	logger     *zap.Logger
	now        func() time.Time
}

// NewWatcher creates a new watcher daemon.
func NewWatcher(
	config WatcherConfig,
	reconciler Reconciler,
	project ProjectSource,
	registry domain.DaemonRegistry,
	pi domain.ProcessInspector,
	logger *zap.Logger,
) *Watcher {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	return &Watcher{
		config:     config,
		reconciler: reconciler,
		project:    project,
		registry:   registry,
		pi:         pi,
		logger:     logger,
		now:        time.Now,
	}
}

// Run starts the watcher daemon loop.
// This blocks until context is canceled or startup migration fails.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.register(); err != nil {
		return err
	}
	defer func() {
		if err := w.registry.Clear(); err != nil {
			w.logger.Warn("failed to clear daemon registration", zap.Error(err))
		}
	}()

	w.logger.Info("watcher daemon started",
		zap.Int("pid", w.pi.GetCurrentPID()),
		zap.Duration("interval", w.config.Interval))

	if err := w.migrateOnStartup(ctx); err != nil {
		return err
	}

	w.runPass(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher daemon stopping")
			return ctx.Err()
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

func (w *Watcher) register() error {
	if alive, err := w.registry.IsAlive(); err == nil && alive {
		rec, _ := w.registry.Get()
		if rec != nil && rec.PID != w.pi.GetCurrentPID() {
			return fmt.Errorf("daemon already running with pid %d", rec.PID)
		}
	}

	err := w.registry.Register(domain.DaemonRecord{
		PID:        w.pi.GetCurrentPID(),
		StartedAt:  w.now(),
		Interval:   w.config.Interval.String(),
		AppVersion: w.config.AppVersion,
	})
	if err != nil {
		w.logger.Error("failed to register daemon", zap.Error(err))
		return err
	}
	return nil
}

// migrateOnStartup brings every family to its latest version. A busy lock
// is retried every interval; any partial failure stops the daemon.
func (w *Watcher) migrateOnStartup(ctx context.Context) error {
	for {
		results, err := w.reconciler.Migrate(ctx, nil)
		switch {
		case usecase.IsBusy(err):
			w.logger.Info("control directory busy, retrying startup migration",
				zap.Error(err), zap.Duration("retry_in", w.config.Interval))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.config.Interval):
			}
			continue
		case err != nil:
			w.logger.Error("startup migration failed", zap.Error(err))
			return err
		}

		for _, r := range results {
			if len(r.Applied) > 0 {
				w.logger.Info("family migrated",
					zap.String("family", r.Family),
					zap.Int("from", r.From),
					zap.Int("to", r.To))
			}
		}

		if usecase.AnyPartialFailure(results) {
			return incompleteError(results)
		}
		return nil
	}
}

func incompleteError(results []*domain.MigrationResult) error {
	var failed []string
	var errs []error
	for _, r := range results {
		if r.Succeeded() {
			continue
		}
		failed = append(failed, fmt.Sprintf("%s stopped at v%d of v%d", r.Family, r.LastGood, r.Target))
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	if len(errs) == 0 {
		return fmt.Errorf("%w: %s", ErrMigrationIncomplete, strings.Join(failed, ", "))
	}
	return fmt.Errorf("%w: %s: %w", ErrMigrationIncomplete, strings.Join(failed, ", "), errors.Join(errs...))
}

// runPass executes one keep-local reconciliation.
func (w *Watcher) runPass(ctx context.Context) {
	project, err := w.project()
	if err != nil {
		w.logger.Error("failed to load project context", zap.Error(err))
		return
	}

	_, result, err := w.reconciler.Reconcile(ctx, project, usecase.FixedDecision(domain.KeepLocal))
	if err != nil {
		if usecase.IsBusy(err) {
			w.logger.Info("control directory busy, skipping pass", zap.Error(err))
			return
		}
		w.logger.Error("reconciliation pass failed", zap.Error(err))
		return
	}

	if !result.OK() {
		for _, f := range result.Failed {
			w.logger.Warn("path not reconciled",
				zap.String("path", f.Path),
				zap.String("op", string(f.Op)),
				zap.Error(f.Err))
		}
		if result.Err != nil {
			w.logger.Error("reconciliation stopped early", zap.Error(result.Err))
		}
	}

	if err := w.registry.UpdateHeartbeat(w.now()); err != nil {
		w.logger.Warn("failed to update heartbeat", zap.Error(err))
	}
}
