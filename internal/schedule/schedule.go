// Package schedule runs recurring backup tasks on their configured
// schedules.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bamsammich/banana/internal/task"
)

// RunFunc performs one run of a task.
type RunFunc func(ctx context.Context, t task.Task) error

type entry struct {
	task task.Task
	spec string
	id   cron.EntryID
}

// Service owns a cron scheduler and keeps one entry per recurring task.
// Tasks without a recurring schedule are ignored.
type Service struct {
	cron   *cron.Cron
	run    RunFunc
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]entry
}

// New returns a stopped Service that invokes run when a task is due.
func New(run RunFunc, logger *slog.Logger, opts ...cron.Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	opts = append([]cron.Option{cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))}, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cron:    cron.New(opts...),
		run:     run,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]entry),
	}
}

// Start begins firing scheduled runs in the background.
func (s *Service) Start() {
	s.cron.Start()
}

// Stop stops scheduling, cancels in-flight runs and waits for them to
// return or for ctx to end.
func (s *Service) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for scheduled runs: %w", ctx.Err())
	}
}

// Sync makes the scheduled entries match tasks: new recurring tasks are
// added, changed ones rescheduled, and tasks that disappeared or stopped
// recurring are removed. Tasks with invalid schedules are skipped and
// reported in the returned error.
func (s *Service) Sync(tasks []task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	want := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if !t.Schedule.Recurring() {
			continue
		}
		spec, err := t.Schedule.CronSpec()
		if err != nil {
			errs = append(errs, fmt.Errorf("task %q: %w", t.Name, err))
			continue
		}
		want[t.Name] = struct{}{}

		if old, ok := s.entries[t.Name]; ok {
			if old.spec == spec {
				old.task = t
				s.entries[t.Name] = old
				continue
			}
			s.cron.Remove(old.id)
		}

		id, err := s.cron.AddFunc(spec, s.job(t.Name))
		if err != nil {
			delete(s.entries, t.Name)
			errs = append(errs, fmt.Errorf("task %q: %w", t.Name, err))
			continue
		}
		s.entries[t.Name] = entry{task: t, spec: spec, id: id}
		s.logger.Info("scheduled task", "task", t.Name, "schedule", t.Schedule.String(), "cron", spec)
	}

	for name, e := range s.entries {
		if _, ok := want[name]; !ok {
			s.cron.Remove(e.id)
			delete(s.entries, name)
			s.logger.Info("unscheduled task", "task", name)
		}
	}
	return errors.Join(errs...)
}

// Upcoming is a scheduled task and its next run time.
type Upcoming struct {
	Next time.Time
	Task task.Task
}

// Upcoming lists the scheduled tasks ordered by next run time. Next is zero
// until the service has been started.
func (s *Service) Upcoming() []Upcoming {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Upcoming, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, Upcoming{Task: e.task, Next: s.cron.Entry(e.id).Next})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Next.Equal(out[j].Next) {
			return out[i].Next.Before(out[j].Next)
		}
		return out[i].Task.Name < out[j].Task.Name
	})
	return out
}

// job returns the cron callback for a task. The task definition is looked
// up when the job fires so a Sync that only edits fields takes effect.
func (s *Service) job(name string) func() {
	return func() {
		s.mu.Lock()
		e, ok := s.entries[name]
		s.mu.Unlock()
		if !ok || s.ctx.Err() != nil {
			return
		}

		s.logger.Info("scheduled run starting", "task", name)
		if err := s.run(s.ctx, e.task); err != nil {
			s.logger.Error("scheduled run failed", "task", name, "error", err)
		}
	}
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
