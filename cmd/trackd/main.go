// Package main is the CLI entry point for trackd.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/eliteGoblin/trackd/internal/config"
	"github.com/eliteGoblin/trackd/internal/daemon"
	"github.com/eliteGoblin/trackd/internal/domain"
	"github.com/eliteGoblin/trackd/internal/infra"
	"github.com/eliteGoblin/trackd/internal/prompt"
	"github.com/eliteGoblin/trackd/internal/scaffold"
	"github.com/eliteGoblin/trackd/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		if hint := hintFor(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "trackd",
	Short: "Keeps a repository's tracker scaffolding and data current",
	Long: `trackd manages the .trackd control directory of a repository: the issue
templates, schemas and hooks it generates, and the issue, board and index
data it stores.

'trackd sync' restores generated files to their templates without touching
files you edited; 'trackd migrate' upgrades stored data to the current schema.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the control directory and seed it",
	Long: `Creates every managed file and directory, writes config.yaml from the
project flags (or values derived from the repository name), and brings all
data families to their latest schema. Existing files are never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what sync would do",
	Args:  cobra.NoArgs,
	RunE:  runPlan,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile managed files with their templates",
	Long: `Creates missing managed files and restores files nobody edited.
Files edited since the last sync are kept unless --decision says otherwise.
overwrite and delete apply to generated files only: config.yaml, README.md
and hooks stay as edited. --decision prompt asks per file when running in a
terminal.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [family]",
	Short: "Migrate stored data to a schema version",
	Long: `Without arguments every data family is migrated to its latest version.
With a family, --to selects the target version; a lower target migrates down.
A snapshot of the family is saved before the first step.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrate,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <family>",
	Short: "Restore a data family from its newest snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestore,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show managed file, data and daemon status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List managed paths and their policies",
	Args:  cobra.NoArgs,
	RunE:  runTemplates,
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run periodic reconciliation in the background",
	Long: `Migrates every data family to its latest version, then reconciles managed
files on an interval. Files edited locally are always kept. The daemon
refuses to start if any migration fails.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	rootFlag     string
	logLevel     string
	logFile      string
	projectName  string
	projectKey   string
	projectOwner string
	decisionFlag string
	dryRun       bool
	verbose      bool
	migrateTo    int
	noSnapshot   bool
	interval     time.Duration
	detach       bool
	jsonOutput   bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlag, "root", "", "Control directory (default: nearest .trackd)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")
	pf.StringVar(&projectName, "name", "", "Project name")
	pf.StringVar(&projectKey, "key", "", "Project issue key, e.g. TRK")
	pf.StringVar(&projectOwner, "owner", "", "Project owner")

	planCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also list unchanged paths")
	syncCmd.Flags().StringVar(&decisionFlag, "decision", "", "Edited files: keep, overwrite, delete or prompt (default from config)")
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the plan without changing anything")
	migrateCmd.Flags().IntVar(&migrateTo, "to", -1, "Target version (requires a family)")
	migrateCmd.Flags().BoolVar(&noSnapshot, "no-snapshot", false, "Skip the pre-migration snapshot")
	daemonCmd.Flags().DurationVar(&interval, "interval", 0, "Time between passes (default from config)")
	daemonCmd.Flags().BoolVar(&detach, "detach", false, "Start the daemon in the background and return")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	migrateCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(versionCmd)
}

func resolveRoot() (string, error) {
	return infra.ResolveRoot(rootFlag, "")
}

func open(allowMissing bool) (*app, error) {
	root, err := resolveRoot()
	if err != nil {
		return nil, err
	}
	return openApp(root, allowMissing)
}

func runInit(cmd *cobra.Command, args []string) error {
	a, err := open(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	project := a.project(uuid.NewString)

	_, result, err := a.controller.Reconcile(ctx, project, usecase.FixedDecision(domain.KeepLocal))
	if err != nil {
		return err
	}
	fmt.Print(FormatResult(result))
	if !result.OK() {
		return errors.New("some managed paths could not be created")
	}

	results, err := a.controller.Migrate(ctx, nil)
	if err != nil {
		return err
	}
	fmt.Print(FormatMigrations(results))
	if usecase.AnyPartialFailure(results) {
		return errors.New("data migration incomplete")
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("Initialized %s (project %s, key %s)", a.layout.Root, project.Name, project.Key)))
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	a, err := open(false)
	if err != nil {
		return err
	}
	defer a.Close()

	plan, err := a.controller.Plan(cmd.Context(), a.project(nil))
	if err != nil {
		return err
	}
	fmt.Print(FormatPlan(plan, verbose))
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := open(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	project := a.project(nil)

	if dryRun {
		plan, err := a.controller.Plan(ctx, project)
		if err != nil {
			return err
		}
		fmt.Print(FormatPlan(plan, verbose))
		return nil
	}

	decide, err := decisionFunc(a.cfg)
	if err != nil {
		return err
	}

	_, result, err := a.controller.Reconcile(ctx, project, decide)
	if err != nil {
		return err
	}
	fmt.Print(FormatResult(result))
	if result.Err != nil {
		return result.Err
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d managed path(s) failed", len(result.Failed))
	}
	return nil
}

// decisionFunc picks how edited files are resolved: the --decision flag,
// then reconcile.decision. "prompt" falls back to keep-local without a terminal.
func decisionFunc(cfg *config.Config) (usecase.DecisionFunc, error) {
	choice := decisionFlag
	if choice == "" {
		choice = cfg.Reconcile.Decision
	}
	if strings.EqualFold(choice, "prompt") {
		if prompt.Interactive() {
			return prompt.Terminal(), nil
		}
		return usecase.FixedDecision(domain.KeepLocal), nil
	}
	disp, err := usecase.ParseDisposition(choice)
	if err != nil {
		return nil, err
	}
	return usecase.FixedDecision(disp), nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if migrateTo >= 0 && len(args) == 0 {
		return errors.New("--to requires a family")
	}

	a, err := open(false)
	if err != nil {
		return err
	}
	defer a.Close()

	if noSnapshot {
		a.migrator.WithSnapshots(nil)
	}

	var targets map[string]int
	if len(args) == 1 {
		family := args[0]
		if len(a.catalog.MigrationsFor(family)) == 0 {
			return fmt.Errorf("unknown data family %q (known: %s)", family, strings.Join(a.catalog.Families(), ", "))
		}
		target := migrateTo
		if target < 0 {
			target = a.catalog.Latest(family)
		}
		targets = map[string]int{family: target}
	}

	results, err := a.controller.Migrate(cmd.Context(), targets)
	if len(results) > 0 {
		fmt.Print(FormatMigrations(results))
	}
	if err != nil {
		return err
	}
	if usecase.AnyPartialFailure(results) {
		return errors.New("data migration incomplete")
	}
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	a, err := open(false)
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := a.controller.Restore(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Restored %s to v%d from %s", snap.Family, snap.Version, snap.Location)))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := open(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	plan, err := a.controller.Plan(ctx, a.project(nil))
	if err != nil {
		return err
	}
	versions, err := a.controller.Versions(ctx)
	if err != nil {
		return err
	}
	rec, err := a.daemons.Get()
	if err != nil {
		return err
	}
	alive := rec != nil && a.processes.IsRunning(rec.PID)

	fmt.Print(FormatStatus(a.layout.Root, plan, versions, rec, alive))
	return nil
}

func runTemplates(cmd *cobra.Command, args []string) error {
	templates, err := scaffold.NewRegistry()
	if err != nil {
		return err
	}
	fmt.Print(FormatTemplates(templates.Templates()))
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot()
	if err != nil {
		return err
	}

	if detach {
		file := logFile
		if file == "" {
			file = filepath.Join(infra.NewLayout(root).StateDir, "daemon.log")
		}
		pid, err := daemon.StartDaemon(root, interval, file)
		if err != nil {
			return fmt.Errorf("failed to start daemon: %w", err)
		}
		fmt.Printf("daemon started (pid %d), logging to %s\n", pid, file)
		return nil
	}

	quietLogs = false
	a, err := openApp(root, false)
	if err != nil {
		return err
	}
	defer a.Close()

	every := interval
	if every <= 0 {
		every = a.cfg.Daemon.Interval
	}

	// Set up graceful shutdown
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	source := func() (domain.ProjectContext, error) {
		cfg, err := config.Load(a.layout.ConfigPath)
		if err != nil {
			return domain.ProjectContext{}, err
		}
		a.cfg.Project = cfg.Project
		return a.project(nil), nil
	}

	watcher := daemon.NewWatcher(
		daemon.WatcherConfig{Interval: every, AppVersion: Version},
		a.controller,
		source,
		a.daemons,
		a.processes,
		a.logger,
	)
	err = watcher.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		out, _ := json.Marshal(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		fmt.Println(string(out))
	} else {
		fmt.Printf("trackd %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

// hintFor suggests a next step for errors a user can act on.
func hintFor(err error) string {
	var missing *domain.MissingContextError
	var lockErr *domain.LockError
	switch {
	case errors.As(err, &lockErr):
		return "Another trackd process is working on this directory; retry later."
	case errors.As(err, &missing):
		fields := make([]string, 0, len(missing.Fields))
		for _, f := range missing.Fields {
			fields = append(fields, "project."+f)
		}
		return "Set " + strings.Join(fields, ", ") + " in config.yaml, or run 'trackd init'."
	case errors.Is(err, domain.ErrNoPath):
		return "Run 'trackd status' to see the current and latest version of each family."
	}
	return ""
}

// exitCode maps error kinds to process exit statuses.
func exitCode(err error) int {
	switch {
	case usecase.IsBusy(err):
		return 75 // EX_TEMPFAIL
	case errors.Is(err, domain.ErrMissingContext):
		return 78 // EX_CONFIG
	}
	return 1
}
