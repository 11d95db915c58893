package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/bamsammich/banana/internal/engine"
	"github.com/bamsammich/banana/internal/schedule"
	"github.com/bamsammich/banana/internal/task"
	"github.com/bamsammich/banana/internal/ui"
)

func newScheduleCmd(a *app) *cobra.Command {
	var (
		reload      time.Duration
		stopTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run scheduled tasks in the foreground until interrupted",
		Long: `Run scheduled tasks in the foreground until SIGINT or SIGTERM.
The task file is re-read periodically, so tasks added or edited while the
scheduler runs are picked up without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reload <= 0 {
				return fmt.Errorf("--reload must be positive, got %s", reload)
			}
			hist, err := a.openHistory()
			if err != nil {
				return err
			}
			defer hist.Close()

			runner := engine.NewRunner(engine.RunnerConfig{
				Manifests: a.manifests,
				History:   hist,
				Observer:  engine.MultiObserver{&notifier{w: a.stdout}, eventLogger{logger: a.logger}},
				Logger:    a.logger,
				Workers:   a.workers,
				BWLimit:   a.bwLimit,
			})
			svc := schedule.New(func(ctx context.Context, t task.Task) error {
				_, err := runner.Run(ctx, t)
				return err
			}, a.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.syncSchedule(svc)
			svc.Start()
			a.logger.Info("scheduler started", "tasks", a.cfg.TasksPath(), "history", hist.Path())
			if !a.quiet {
				writeUpcoming(a, svc.Upcoming())
			}

			ticker := time.NewTicker(reload)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					a.syncSchedule(svc)
				case <-ctx.Done():
					a.logger.Info("scheduler stopping")
					stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
					defer cancel()
					return svc.Stop(stopCtx)
				}
			}
		},
	}
	cmd.Flags().DurationVar(&reload, "reload", time.Minute, "how often to re-read the task file")
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 30*time.Second, "how long to wait for running backups on shutdown")
	return cmd
}

func (a *app) syncSchedule(svc *schedule.Service) {
	tasks, err := a.tasks.List()
	if err != nil {
		a.logger.Error("load tasks", "error", err)
		return
	}
	if err := svc.Sync(tasks); err != nil {
		a.logger.Warn("some tasks were not scheduled", "error", err)
	}
}

func writeUpcoming(a *app, upcoming []schedule.Upcoming) {
	if len(upcoming) == 0 {
		fmt.Fprintln(a.stdout, "no scheduled tasks")
		return
	}
	table := uitable.New()
	table.AddRow("TASK", "SCHEDULE", "NEXT RUN")
	for _, u := range upcoming {
		table.AddRow(u.Task.Name, u.Task.Schedule.String(), ui.FormatWhen(u.Next))
	}
	fmt.Fprintln(a.stdout, table)
}
