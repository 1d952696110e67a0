package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/trackd/internal/config"
	"github.com/eliteGoblin/trackd/internal/domain"
	"github.com/eliteGoblin/trackd/internal/infra"
	"github.com/eliteGoblin/trackd/internal/scaffold"
	"github.com/eliteGoblin/trackd/internal/schema"
	"github.com/eliteGoblin/trackd/internal/usecase"
)

// quietLogs raises the default log level of interactive commands to warn
// when logging to the terminal.
var quietLogs = true

// app is one fully wired invocation against a control directory.
type app struct {
	layout     *infra.Layout
	cfg        *config.Config
	logger     *zap.Logger
	templates  *scaffold.Registry
	catalog    *schema.Registry
	hashes     *infra.FileHashStore
	migrator   *usecase.MigratorImpl
	controller *usecase.Controller
	daemons    *infra.FileDaemonRegistry
	processes  domain.ProcessInspector
	closers    []func() error
}

// openApp wires every store and use case for root. Unless allowMissing is
// set, root must already exist.
func openApp(root string, allowMissing bool) (*app, error) {
	layout := infra.NewLayout(root)
	if !allowMissing {
		if _, err := os.Stat(root); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%s is not initialized, run 'trackd init'", root)
			}
			return nil, err
		}
	}

	cfg, err := config.Load(layout.ConfigPath)
	if err != nil {
		return nil, err
	}
	applyLogFlags(cfg)

	logger, err := createLogger(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, err
	}

	a := &app{layout: layout, cfg: cfg, logger: logger}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	var err error
	if a.templates, err = scaffold.NewRegistry(); err != nil {
		return fmt.Errorf("invalid template registry: %w", err)
	}
	if a.catalog, err = schema.Default(); err != nil {
		return fmt.Errorf("invalid migration registry: %w", err)
	}
	if a.hashes, err = infra.NewFileHashStore(a.layout.HashStorePath); err != nil {
		return err
	}

	var key []byte
	if a.cfg.Index.Encrypt {
		if key, err = infra.EnsureKey(infra.NewFileKeyProvider(a.layout.StateDir)); err != nil {
			return fmt.Errorf("failed to load index key: %w", err)
		}
	}
	index, err := infra.NewSQLiteDocumentStore(schema.FamilyIndex, filepath.Join(a.layout.CacheDir, "index.db"), key)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, index.Close)

	stores := []domain.DocumentStore{
		infra.NewJSONDocumentStore(schema.FamilyIssues, filepath.Join(a.layout.DataDir, "issues.json")),
		infra.NewYAMLDocumentStore(schema.FamilyBoards, filepath.Join(a.layout.DataDir, "boards.yaml")),
		index,
	}

	snapshots, err := infra.NewSnapshotManager(a.layout.SnapshotDir, a.logger)
	if err != nil {
		return err
	}
	versions := infra.NewFileVersionStore(a.layout.VersionsPath)
	a.migrator = usecase.NewMigrator(a.catalog, versions, stores, a.logger).WithSnapshots(snapshots)

	a.processes = infra.NewProcessInspector()
	a.daemons = infra.NewFileDaemonRegistry(a.layout.DaemonPath, a.processes)

	a.controller = usecase.NewController(a.layout.Root, usecase.ControllerDeps{
		Templates: a.templates,
		Prober:    infra.NewProber(a.cfg.Reconcile.Workers, a.logger),
		Hashes:    a.hashes,
		Executor:  usecase.NewExecutor(infra.NewFileSystemManager(), a.hashes, a.logger),
		Migrator:  a.migrator,
		Catalog:   a.catalog,
		Locker:    infra.NewFileLocker(a.layout.LockPath, a.processes),
	}, a.logger)
	return nil
}

// project returns the generator input: config values, then flag overrides,
// then values derived from the repository directory.
func (a *app) project(newID func() string) domain.ProjectContext {
	ctx := a.cfg.ProjectContext()
	if projectName != "" {
		ctx.Name = projectName
	}
	if projectKey != "" {
		ctx.Key = projectKey
	}
	if projectOwner != "" {
		ctx.Owner = projectOwner
	}
	filled := config.FillProjectDefaults(&ctx, filepath.Dir(a.layout.Root), newID)
	if len(filled) > 0 {
		a.logger.Debug("derived project fields", zap.Strings("fields", filled))
	}
	return ctx
}

// Close flushes the logger and releases open stores.
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("failed to close store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

func applyLogFlags(cfg *config.Config) {
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	if quietLogs && logLevel == "" && cfg.Log.File == "" && cfg.Log.Level != "debug" {
		cfg.Log.Level = "warn"
	}
}

// createLogger builds a production JSON logger. Without a file it writes to
// stderr so command output on stdout stays clean.
func createLogger(level, file string) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return nil, err
		}
		zc.OutputPaths = []string{file}
		zc.ErrorOutputPaths = []string{file}
	} else {
		zc.OutputPaths = []string{"stderr"}
		zc.ErrorOutputPaths = []string{"stderr"}
	}

	logger, err := zc.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger, nil
}
