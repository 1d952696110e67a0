package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/trackd/internal/domain"
)

// DecisionFunc resolves the ambiguous paths of a plan, interactively or by policy.
type DecisionFunc func(plan *domain.ReconciliationPlan) (domain.ReconciliationDecisions, error)

// Controller runs reconciliation and migration passes over one control
// directory, holding the directory lock for the whole pass.
type Controller struct {
	root      string
	templates domain.TemplateSource
	prober    domain.Prober
	hashes    domain.HashStore
	executor  domain.Executor
	migrator  domain.Migrator
	catalog   domain.MigrationCatalog
	locker    domain.Locker
	logger    *zap.Logger
}

// ControllerDeps groups the collaborators of a Controller.
type ControllerDeps struct {
	Templates domain.TemplateSource
	Prober    domain.Prober
	Hashes    domain.HashStore
	Executor  domain.Executor
	Migrator  domain.Migrator
	Catalog   domain.MigrationCatalog
	Locker    domain.Locker
}

// NewController creates a controller for the control directory at root.
func NewController(root string, deps ControllerDeps, logger *zap.Logger) *Controller {
	return &Controller{
		root:      root,
		templates: deps.Templates,
		prober:    deps.Prober,
		hashes:    deps.Hashes,
		executor:  deps.Executor,
		migrator:  deps.Migrator,
		catalog:   deps.Catalog,
		locker:    deps.Locker,
		logger:    logger,
	}
}

// Root returns the control directory.
func (c *Controller) Root() string {
	return c.root
}

// Plan probes and classifies without changing anything.
func (c *Controller) Plan(ctx context.Context, project domain.ProjectContext) (*domain.ReconciliationPlan, error) {
	templates := c.templates.Templates()
	infos, err := c.prober.Probe(ctx, c.root, templates, project)
	if err != nil {
		return nil, err
	}
	return BuildPlan(infos, templates, c.hashes.All()), nil
}

// Reconcile runs one full probe, plan, decide, execute pass under the lock.
// Without a DecisionFunc every ambiguous path keeps its local content.
func (c *Controller) Reconcile(
	ctx context.Context,
	project domain.ProjectContext,
	decide DecisionFunc,
) (*domain.ReconciliationPlan, *domain.ReconciliationResult, error) {
	unlock, err := c.locker.TryLock()
	if err != nil {
		return nil, nil, err
	}
	defer c.release(unlock)

	// Another process may have reconciled since the store was opened
	if err := c.hashes.Reload(); err != nil {
		return nil, nil, err
	}

	plan, err := c.Plan(ctx, project)
	if err != nil {
		return nil, nil, err
	}

	decisions := domain.ReconciliationDecisions{}
	if plan.NeedsDecisions() && decide != nil {
		decisions, err = decide(plan)
		if err != nil {
			return plan, nil, fmt.Errorf("failed to collect decisions: %w", err)
		}
	}

	result := c.executor.Execute(ctx, plan, decisions, c.root)

	c.logger.Info("reconciliation pass completed",
		zap.Int("created", len(result.Created)),
		zap.Int("restored", len(result.Restored)),
		zap.Int("overwritten", len(result.Overwritten)),
		zap.Int("kept", len(result.Kept)),
		zap.Int("deleted", len(result.Deleted)),
		zap.Int("failed", len(result.Failed)))

	return plan, result, nil
}

// Migrate moves families to their targets under the lock. A nil or empty
// targets map migrates every family to its latest version.
func (c *Controller) Migrate(ctx context.Context, targets map[string]int) ([]*domain.MigrationResult, error) {
	unlock, err := c.locker.TryLock()
	if err != nil {
		return nil, err
	}
	defer c.release(unlock)

	if len(targets) == 0 {
		targets = c.LatestTargets()
	}
	return c.migrator.MigrateAll(ctx, targets)
}

// Restore rolls a family back to its newest snapshot under the lock.
func (c *Controller) Restore(ctx context.Context, family string) (*domain.Snapshot, error) {
	unlock, err := c.locker.TryLock()
	if err != nil {
		return nil, err
	}
	defer c.release(unlock)

	return c.migrator.Restore(ctx, family)
}

// FamilyVersion is where a data family is and where it could be.
type FamilyVersion struct {
	Family  string
	Current int
	Latest  int
}

// Versions reports the current and latest version of every family, sorted
// by family. It reads without taking the lock.
func (c *Controller) Versions(ctx context.Context) ([]FamilyVersion, error) {
	families := c.catalog.Families()
	out := make([]FamilyVersion, 0, len(families))
	for _, f := range families {
		current, err := c.migrator.Current(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		out = append(out, FamilyVersion{Family: f, Current: current, Latest: c.catalog.Latest(f)})
	}
	return out, nil
}

// LatestTargets maps every family to its latest version.
func (c *Controller) LatestTargets() map[string]int {
	targets := make(map[string]int)
	for _, f := range c.catalog.Families() {
		targets[f] = c.catalog.Latest(f)
	}
	return targets
}

func (c *Controller) release(unlock domain.UnlockFunc) {
	if err := unlock(); err != nil {
		c.logger.Warn("failed to release control directory lock", zap.Error(err))
	}
}

// AnyPartialFailure reports whether some migration did not reach its target.
func AnyPartialFailure(results []*domain.MigrationResult) bool {
	for _, r := range results {
		if !r.Succeeded() {
			return true
		}
	}
	return false
}

// IsBusy reports whether err means another process holds the control directory.
func IsBusy(err error) bool {
	return errors.Is(err, domain.ErrBusy)
}
