package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/banana/internal/engine"
	"github.com/bamsammich/banana/internal/task"
	"github.com/bamsammich/banana/internal/ui"
)

func newTasksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage backup tasks",
	}
	cmd.AddCommand(newTasksAddCmd(a), newTasksListCmd(a), newTasksRemoveCmd(a))
	return cmd
}

func newTasksAddCmd(a *app) *cobra.Command {
	var (
		t     task.Task
		sched scheduleFlag
		day   string
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create or update a task",
		Long: `Create or update a task. Re-adding a task under a new name with
otherwise identical settings renames it.

--schedule takes "once", "daily@HH:MM" or "weekly@HH:MM" (with --day).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t.Name = args[0]
			if !cmd.Flags().Changed("verify") && a.cfg.Defaults.Verify != nil {
				t.Verify = *a.cfg.Defaults.Verify
			}
			if day != "" {
				if sched.s == nil || sched.s.Frequency != task.Weekly {
					return errors.New("--day only applies to weekly schedules")
				}
				sched.s.Day = day
			}
			if err := sched.s.Validate(); err != nil {
				return fmt.Errorf("invalid --schedule: %w", err)
			}
			t.Schedule = sched.s
			if err := engine.Validate(t); err != nil {
				return err
			}

			prev, prevErr := a.tasks.Get(t.Name)
			renamedFrom, err := a.tasks.Put(t)
			if err != nil {
				return err
			}
			if prevErr == nil && engine.Retargeted(prev, t) {
				// The old manifest describes another destination.
				if err := a.manifests.Remove(t.Name); err != nil {
					return err
				}
				a.logger.Info("task retargeted, next run copies everything", "task", t.Name,
					"source", t.Source, "destination", t.Destination)
			}
			if renamedFrom != "" {
				// The manifest follows the task so the next run stays incremental.
				if err := renameManifest(a.manifests, renamedFrom, t.Name); err != nil {
					a.logger.Warn("could not carry manifest over to renamed task", "error", err)
				}
				fmt.Fprintf(a.stdout, "renamed task %q to %q\n", renamedFrom, t.Name)
				return nil
			}
			fmt.Fprintf(a.stdout, "saved task %q\n", t.Name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&t.Source, "source", "s", "", "directory to back up")
	cmd.Flags().StringVarP(&t.Destination, "dest", "d", "", "directory to back up into")
	cmd.Flags().StringArrayVarP(&t.Exclude, "exclude", "x", nil, "exclude paths matching PATTERN (repeatable)")
	cmd.Flags().BoolVar(&t.Mirror, "mirror", false, "remove files from the destination once deleted from the source")
	cmd.Flags().BoolVar(&t.Verify, "verify", false, "verify checksums after copy (BLAKE3)")
	cmd.Flags().Var(&sched, "schedule", "once, daily@HH:MM or weekly@HH:MM")
	cmd.Flags().StringVar(&day, "day", "", "day of week for weekly schedules")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("dest")
	return cmd
}

// scheduleFlag is a pflag.Value for --schedule. The weekday comes from a
// separate --day flag.
type scheduleFlag struct {
	s *task.Schedule
}

var _ pflag.Value = (*scheduleFlag)(nil)

func (f *scheduleFlag) String() string {
	if f.s == nil {
		return ""
	}
	if f.s.Time == "" {
		return string(f.s.Frequency)
	}
	return string(f.s.Frequency) + "@" + f.s.Time
}

func (*scheduleFlag) Type() string { return "schedule" }

func (f *scheduleFlag) Set(val string) error {
	freq, at, _ := strings.Cut(strings.TrimSpace(val), "@")
	s := &task.Schedule{Frequency: task.Frequency(strings.ToLower(freq)), Time: at}
	switch s.Frequency {
	case task.Once:
	case task.Daily, task.Weekly:
		if at == "" {
			return fmt.Errorf("%s schedules need a time, e.g. %s@02:00", freq, freq)
		}
	default:
		return fmt.Errorf("unknown frequency %q (want once, daily or weekly)", freq)
	}
	f.s = s
	return nil
}

func renameManifest(store *engine.ManifestStore, from, to string) error {
	m, err := store.Read(from)
	if err != nil {
		return err
	}
	if m.Len() == 0 {
		return nil
	}
	m.Task = to
	if err := store.Write(m); err != nil {
		return err
	}
	return store.Remove(from)
}

func newTasksListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List tasks with their last run",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tasks, err := a.tasks.List()
			if err != nil {
				return err
			}
			last, err := a.lastRuns(cmd.Context(), tasks)
			if err != nil {
				return err
			}
			ui.WriteTasks(a.stdout, tasks, last)
			return nil
		},
	}
}

// lastRuns returns the most recent run of each task that has one.
func (a *app) lastRuns(ctx context.Context, tasks []task.Task) (map[string]engine.BackupResult, error) {
	hist, err := a.openHistory()
	if err != nil {
		return nil, err
	}
	defer hist.Close()

	last := make(map[string]engine.BackupResult, len(tasks))
	for _, t := range tasks {
		runs, err := hist.List(ctx, t.Name, 1)
		if err != nil {
			return nil, err
		}
		if len(runs) > 0 {
			last[t.Name] = runs[0]
		}
	}
	return last, nil
}

func newTasksRemoveCmd(a *app) *cobra.Command {
	var keepManifest bool

	cmd := &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a task definition",
		Long:    "Delete a task definition. Backed-up files and run history are kept.",
		Args:    cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]
			if err := a.tasks.Delete(name); err != nil {
				return err
			}
			if !keepManifest {
				if err := a.manifests.Remove(name); err != nil {
					return err
				}
			}
			fmt.Fprintf(a.stdout, "removed task %q\n", name)
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepManifest, "keep-manifest", false, "keep the manifest so a re-added task resumes incrementally")
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <task>",
		Short: "Forget a task's manifest so its next run copies everything",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if _, err := a.tasks.Get(args[0]); err != nil {
				return err
			}
			if err := a.manifests.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "reset task %q\n", args[0])
			return nil
		},
	}
}
