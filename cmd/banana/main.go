package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/bamsammich/banana/internal/config"
	"github.com/bamsammich/banana/internal/engine"
	"github.com/bamsammich/banana/internal/history"
	"github.com/bamsammich/banana/internal/task"
	"github.com/bamsammich/banana/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// app holds the state shared by every subcommand, built once the root
// command's flags are parsed.
type app struct {
	stdout io.Writer
	stderr io.Writer

	cfg       config.Config
	logger    *slog.Logger
	logCloser io.Closer

	tasks     *task.Store
	manifests *engine.ManifestStore

	verbose    bool
	quiet      bool
	noProgress bool
	logFile    string
	workers    int
	bwLimitStr string
	bwLimit    int64
}

func run(args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
	if err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "banana",
		Short:         "Incremental backups of local directories",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.IntVarP(&a.workers, "workers", "n", 0, "number of copy workers (default: min(NumCPU*2, 16))")
	flags.StringVar(&a.bwLimitStr, "bwlimit", "", "bandwidth limit per second (e.g. 100M, 1G)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "suppress all output except errors")
	flags.StringVar(&a.logFile, "log", "", "write structured JSON log to FILE (rotated)")
	flags.BoolVar(&a.noProgress, "no-progress", false, "disable progress display")

	rootCmd.AddCommand(
		newRunCmd(a),
		newPreviewCmd(a),
		newTasksCmd(a),
		newResetCmd(a),
		newHistoryCmd(a),
		newLogCmd(a),
		newScheduleCmd(a),
		newVersionCmd(a),
		newDocsCmd(),
	)
	return rootCmd
}

// setup loads the config file, applies its defaults to flags the user did
// not set, and opens the logger and stores.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, cfgErr := config.Load()
	a.cfg = cfg
	applyConfigDefaults(cmd, cfg.Defaults, a)

	logLevel := slog.LevelInfo
	switch {
	case a.verbose:
		logLevel = slog.LevelDebug
	case a.quiet:
		logLevel = slog.LevelWarn
	}
	a.logger, a.logCloser = ui.NewLogger(ui.LogConfig{
		Stderr: a.stderr,
		File:   a.logFile,
		Level:  logLevel,
	})
	slog.SetDefault(a.logger)
	if cfgErr != nil {
		a.logger.Warn("failed to load config", "path", config.Path(), "error", cfgErr)
	}

	if a.bwLimitStr != "" {
		n, err := humanize.ParseBytes(a.bwLimitStr)
		if err != nil {
			return fmt.Errorf("invalid --bwlimit: %w", err)
		}
		a.bwLimit = int64(n) //nolint:gosec // G115: user-supplied rate, far below MaxInt64
	}
	if a.workers <= 0 {
		a.workers = min(runtime.NumCPU()*2, 16)
	}

	a.tasks = task.NewStore(a.cfg.TasksPath())
	a.manifests = engine.NewManifestStore(a.cfg.ManifestDir())
	return nil
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(cmd *cobra.Command, defaults config.DefaultsConfig, a *app) {
	if !cmd.Flags().Changed("workers") && defaults.Workers != nil {
		a.workers = *defaults.Workers
	}
	if !cmd.Flags().Changed("bwlimit") && defaults.BWLimit != nil {
		a.bwLimitStr = *defaults.BWLimit
	}
	if !cmd.Flags().Changed("log") && defaults.LogFile != nil {
		a.logFile = *defaults.LogFile
	}
}

// openHistory opens the run history database. The caller closes it.
func (a *app) openHistory() (*history.Store, error) {
	store, err := history.Open(a.cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return store, nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			fmt.Fprintf(a.stdout, "banana %s\n", version)
		},
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
