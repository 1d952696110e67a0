//go:build integration

package integration

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/eliteGoblin/trackd/internal/domain"
	"github.com/eliteGoblin/trackd/internal/infra"
	"github.com/eliteGoblin/trackd/internal/scaffold"
	"github.com/eliteGoblin/trackd/internal/schema"
	"github.com/eliteGoblin/trackd/internal/usecase"
)

// stack is the production wiring over one control directory.
type stack struct {
	layout     *infra.Layout
	templates  *scaffold.Registry
	controller *usecase.Controller
	snapshots  *infra.SnapshotManager
	index      *infra.SQLiteDocumentStore
}

func newStack(root string) (*stack, error) {
	logger := zap.NewNop()
	layout := infra.NewLayout(root)

	templates, err := scaffold.NewRegistry()
	if err != nil {
		return nil, err
	}
	catalog, err := schema.Default()
	if err != nil {
		return nil, err
	}
	hashes, err := infra.NewFileHashStore(layout.HashStorePath)
	if err != nil {
		return nil, err
	}
	key, err := infra.EnsureKey(infra.NewFileKeyProvider(layout.StateDir))
	if err != nil {
		return nil, err
	}
	index, err := infra.NewSQLiteDocumentStore(schema.FamilyIndex, filepath.Join(layout.CacheDir, "index.db"), key)
	if err != nil {
		return nil, err
	}
	snapshots, err := infra.NewSnapshotManager(layout.SnapshotDir, logger)
	if err != nil {
		index.Close()
		return nil, err
	}

	stores := []domain.DocumentStore{
		infra.NewJSONDocumentStore(schema.FamilyIssues, filepath.Join(layout.DataDir, "issues.json")),
		infra.NewYAMLDocumentStore(schema.FamilyBoards, filepath.Join(layout.DataDir, "boards.yaml")),
		index,
	}
	migrator := usecase.NewMigrator(catalog, infra.NewFileVersionStore(layout.VersionsPath), stores, logger).
		WithSnapshots(snapshots)

	processes := infra.NewProcessInspector()
	controller := usecase.NewController(root, usecase.ControllerDeps{
		Templates: templates,
		Prober:    infra.NewProber(4, logger),
		Hashes:    hashes,
		Executor:  usecase.NewExecutor(infra.NewFileSystemManager(), hashes, logger),
		Migrator:  migrator,
		Catalog:   catalog,
		Locker:    infra.NewFileLocker(layout.LockPath, processes),
	}, logger)

	return &stack{
		layout:     layout,
		templates:  templates,
		controller: controller,
		snapshots:  snapshots,
		index:      index,
	}, nil
}

func (s *stack) Close() error {
	return s.index.Close()
}
