package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/javiermolinar/cadence/internal/config"
	"github.com/javiermolinar/cadence/internal/db"
	"github.com/javiermolinar/cadence/internal/debuglog"
	"github.com/javiermolinar/cadence/internal/scheduler"
	"github.com/javiermolinar/cadence/internal/task"
	"github.com/javiermolinar/cadence/internal/timing"
)

var (
	// Version is set at build time
	Version = "dev"
	// Commit is set at build time
	Commit = "none"
)

// App holds the CLI application state.
type App struct {
	repo    task.Repository
	config  *config.Config
	root    *cobra.Command
	svc     *scheduler.Service
	log     *debuglog.Logger
	loc     *time.Location
	now     func() time.Time
	debug   bool // Enable debug logging
	noColor bool
}

// NewApp creates a new CLI application with the given repository and config.
// A nil repository is opened from the configured path on first use.
func NewApp(repo task.Repository, cfg *config.Config) *App {
	a := &App{repo: repo, config: cfg, now: time.Now}

	a.root = &cobra.Command{
		Use:   "cadence",
		Short: "A CLI tool for planning project tasks",
		Long: `Cadence plans project tasks from partial dates, durations and
dependencies.

Give a task any mix of start, end, deadline and duration, link it to
predecessors (FS, SS, FF, SF with lag) or nest it under a parent, and
cadence works out a consistent window for it.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error { return a.setup() },
	}

	// Add global flags
	a.root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging (logs to "+debuglog.DefaultPath+")")
	a.root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable color output")

	a.root.AddCommand(a.versionCmd())
	a.root.AddCommand(a.configCmd())
	a.root.AddCommand(a.projectCmd())
	a.root.AddCommand(a.taskCmd())
	a.root.AddCommand(a.resolveCmd())
	a.root.AddCommand(a.agendaCmd())

	return a
}

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cadence %s (commit: %s)\n", Version, Commit)
		},
	}
}

// Execute runs the CLI application.
func (a *App) Execute() error {
	return a.root.Execute()
}

// Close releases the repository and the debug log.
func (a *App) Close() error {
	var firstErr error
	if a.repo != nil {
		firstErr = a.repo.Close()
	}
	if err := a.log.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// setup applies global flags before any command runs.
func (a *App) setup() error {
	if a.noColor || !a.config.UI.Color || !term.IsTerminal(int(os.Stdout.Fd())) {
		DisableColor()
	}

	loc, err := a.config.Location()
	if err != nil {
		return err
	}
	a.loc = loc

	if a.debug && a.log == nil {
		log, err := debuglog.Open(debuglog.DefaultPath)
		if err != nil {
			return err
		}
		a.log = log
	}
	return nil
}

// ensureRepo opens the configured database unless a repository was injected.
func (a *App) ensureRepo() error {
	if a.repo != nil {
		return nil
	}

	path := a.config.Storage.DBPath
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}

	repo, err := db.New(path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	a.repo = repo
	return nil
}

// resolver builds a resolver from the schedule settings.
func (a *App) resolver() *timing.Resolver {
	return timing.NewResolver(
		timing.WithClock(timing.ClockFunc(a.now)),
		timing.WithMinSpan(a.config.MinSpanDuration()),
		timing.WithTrace(a.log.ResolveTrace()),
	)
}

// service returns the scheduler service, opening the repository if needed.
func (a *App) service() (*scheduler.Service, error) {
	if err := a.ensureRepo(); err != nil {
		return nil, err
	}
	if a.svc == nil {
		a.svc = scheduler.New(a.repo, a.resolver(), a.log)
	}
	return a.svc, nil
}

// location returns the configured zone, defaulting to Local before setup.
func (a *App) location() *time.Location {
	if a.loc == nil {
		return time.Local
	}
	return a.loc
}
