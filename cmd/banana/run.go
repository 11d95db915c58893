package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bamsammich/banana/internal/engine"
	"github.com/bamsammich/banana/internal/event"
	"github.com/bamsammich/banana/internal/task"
	"github.com/bamsammich/banana/internal/ui"
)

func newRunCmd(a *app) *cobra.Command {
	var all, dryRun bool

	cmd := &cobra.Command{
		Use:   "run [task]...",
		Short: "Back up one or more tasks now",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := a.selectTasks(args, all)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if dryRun {
				return a.preview(ctx, tasks)
			}
			return a.runTasks(ctx, tasks)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "run every defined task")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be copied without writing")
	return cmd
}

func newPreviewCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "preview [task]...",
		Short: "Show what the next backup of a task would copy",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := a.selectTasks(args, all)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.preview(ctx, tasks)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "preview every defined task")
	return cmd
}

// selectTasks resolves task names, or every task when all is set.
func (a *app) selectTasks(names []string, all bool) ([]task.Task, error) {
	if all {
		if len(names) > 0 {
			return nil, errors.New("--all takes no task names")
		}
		tasks, err := a.tasks.List()
		if err != nil {
			return nil, err
		}
		if len(tasks) == 0 {
			return nil, errors.New("no tasks defined")
		}
		return tasks, nil
	}
	if len(names) == 0 {
		return nil, errors.New("name at least one task, or pass --all")
	}

	tasks := make([]task.Task, 0, len(names))
	for _, name := range names {
		t, err := a.tasks.Get(name)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (a *app) preview(ctx context.Context, tasks []task.Task) error {
	runner := engine.NewRunner(engine.RunnerConfig{
		Manifests: a.manifests,
		Logger:    a.logger,
		Workers:   a.workers,
	})
	code := 0
	for _, t := range tasks {
		p, err := runner.Preview(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return &exitError{code: 1}
			}
			a.logger.Error("preview failed", "task", t.Name, "error", err)
			code = 2
			continue
		}
		ui.WritePreview(a.stdout, p, a.verbose)
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// runTasks backs up tasks one after another and maps the worst outcome to
// the exit code: 2 if any run failed, 1 if any was partial or canceled.
func (a *app) runTasks(ctx context.Context, tasks []task.Task) error {
	hist, err := a.openHistory()
	if err != nil {
		return err
	}
	defer hist.Close()

	code := 0
	for _, t := range tasks {
		if ctx.Err() != nil {
			code = max(code, 1)
			break
		}
		res, err := a.runOne(ctx, hist, t)
		switch {
		case errors.Is(err, engine.ErrTaskBusy):
			a.logger.Error("task is already running", "task", t.Name)
			code = 2
		case res.Status == event.StatusFailure:
			code = 2
		case res.Status == event.StatusPartial, res.Status == event.StatusCanceled:
			code = max(code, 1)
		}
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// runOne runs a single task with a presenter attached and prints its
// summary and notification.
func (a *app) runOne(ctx context.Context, hist engine.Recorder, t task.Task) (engine.BackupResult, error) {
	obs := engine.NewChanObserver(256)
	presenter := ui.NewPresenter(ui.Config{
		Writer:     a.stdout,
		ErrWriter:  a.stderr,
		IsTTY:      a.stderr == os.Stderr && ui.IsTTY(os.Stderr.Fd()),
		Quiet:      a.quiet,
		Verbose:    a.verbose,
		NoProgress: a.noProgress,
	})

	runner := engine.NewRunner(engine.RunnerConfig{
		Manifests: a.manifests,
		History:   hist,
		Observer:  engine.MultiObserver{obs, eventLogger{logger: a.logger}},
		Logger:    a.logger,
		Workers:   a.workers,
		BWLimit:   a.bwLimit,
	})

	var presenterErr error
	var presenterWg sync.WaitGroup
	presenterWg.Add(1)
	go func() {
		defer presenterWg.Done()
		presenterErr = presenter.Run(obs.Events)
	}()

	res, err := runner.Run(ctx, t)
	close(obs.Events)
	presenterWg.Wait()
	if presenterErr != nil {
		fmt.Fprintf(a.stderr, "presenter: %v\n", presenterErr)
	}

	if !a.quiet && res.Status != "" {
		fmt.Fprintln(a.stderr, ui.ResultSummary(res))
	}
	select {
	case c := <-obs.Completions:
		fmt.Fprintln(a.stdout, ui.FormatNotification(c.Notification))
	default:
	}
	return res, err
}
