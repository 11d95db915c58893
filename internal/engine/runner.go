package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/bamsammich/banana/internal/event"
	"github.com/bamsammich/banana/internal/filter"
	"github.com/bamsammich/banana/internal/stats"
	"github.com/bamsammich/banana/internal/task"
)

// State is a phase of a run.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateScanning   State = "scanning"
	StateDiffing    State = "diffing"
	StateCopying    State = "copying"
	StateFinalizing State = "finalizing"
)

// Recorder persists finished runs.
type Recorder interface {
	Append(ctx context.Context, r BackupResult) error
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Manifests *ManifestStore
	// History receives every finished run. Optional.
	History  Recorder
	Observer Observer
	Logger   *slog.Logger
	Workers  int
	// BWLimit caps copy throughput in bytes per second across all runs of
	// this Runner. Zero means unlimited.
	BWLimit int64
}

// Runner executes backup tasks. It is safe for concurrent use; at most one
// run per task name is active at a time.
type Runner struct {
	cfg     RunnerConfig
	limiter *rate.Limiter

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// NewRunner returns a Runner for cfg.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		cfg:     cfg,
		limiter: NewBWLimiter(cfg.BWLimit),
		locks:   make(map[string]*semaphore.Weighted),
	}
}

// acquire takes the run lock for name without waiting: first this Runner's
// own semaphore, then the store's file lock shared with other processes.
func (r *Runner) acquire(name string) (release func(), err error) {
	r.mu.Lock()
	sem, found := r.locks[name]
	if !found {
		sem = semaphore.NewWeighted(1)
		r.locks[name] = sem
	}
	r.mu.Unlock()

	if !sem.TryAcquire(1) {
		return nil, ErrTaskBusy
	}
	unlock, err := r.cfg.Manifests.Lock(name)
	if err != nil {
		sem.Release(1)
		return nil, err
	}
	return func() {
		unlock()
		sem.Release(1)
	}, nil
}

// Run performs one backup of t: scan, diff against the last manifest, copy
// new and modified files, optionally mirror deletions, then commit the new
// manifest and record the result.
//
// A run that reaches the copy phase returns a nil error even when some
// files failed; the result's Status and Failures describe them. Invalid
// tasks, manifest errors and cancellation return an error alongside the
// result. ErrTaskBusy is returned without recording anything.
func (r *Runner) Run(ctx context.Context, t task.Task) (BackupResult, error) {
	res := BackupResult{
		ID:          uuid.NewString(),
		Task:        t.Name,
		Source:      t.Source,
		Destination: t.Destination,
		StartedAt:   time.Now().UTC(),
	}
	log := r.cfg.Logger.With("task", t.Name, "run", res.ID)

	r.setState(t.Name, StateValidating)
	rts, err := resolveRoots(t)
	if err != nil {
		return r.fail(ctx, log, res, err)
	}

	release, err := r.acquire(t.Name)
	if errors.Is(err, ErrTaskBusy) {
		err = fmt.Errorf("%q: %w", t.Name, err)
		r.cfg.Observer.OnError(err)
		return res, err
	}
	if err != nil {
		return r.fail(ctx, log, res, err)
	}
	defer release()

	chain, err := filter.New(t.Exclude)
	if err != nil {
		return r.fail(ctx, log, res, &ConfigError{Task: t.Name, Field: "exclude", Reason: err.Error()})
	}

	prior, err := r.priorManifest(log, t.Name, rts)
	if err != nil {
		return r.fail(ctx, log, res, err)
	}

	collector := stats.NewCollector()

	r.setState(t.Name, StateScanning)
	r.emit(event.Event{Type: event.ScanStarted, Task: t.Name, Path: t.Source})
	scan, err := Scan(ctx, ScannerConfig{
		Root:    t.Source,
		Filter:  chain,
		Workers: r.cfg.Workers,
		Stats:   collector,
		Emit:    r.taskEmitter(t.Name),
	})
	if err != nil {
		if ctx.Err() != nil {
			return r.finish(ctx, log, res, ctx.Err())
		}
		return r.fail(ctx, log, res, err)
	}
	r.emit(event.Event{Type: event.ScanComplete, Task: t.Name, Total: int64(len(scan.Records))})
	res.Failures = append(res.Failures, scan.Errors...)
	for _, f := range scan.Errors {
		log.Warn("scan error", "path", f.Path, "kind", f.Kind, "error", f.Message)
	}

	r.setState(t.Name, StateDiffing)
	changes, kept := splitDeleted(Diff(scan.Records, prior), scan, chain)
	pending := changes.Pending()
	res.FilesAdded = int64(len(changes.Added))
	res.FilesModified = int64(len(changes.Modified))
	res.FilesDeleted = int64(len(changes.Deleted))
	collector.SetTotals(int64(len(pending)), changes.PendingBytes())
	r.emit(event.Event{
		Type:      event.DiffComplete,
		Task:      t.Name,
		Total:     int64(len(pending)),
		TotalSize: changes.PendingBytes(),
	})
	log.Info("changes detected",
		"added", len(changes.Added),
		"modified", len(changes.Modified),
		"deleted", len(changes.Deleted),
		"unchanged", len(changes.Unchanged))

	if changes.Empty() {
		log.Info("no changes detected")
		return r.finish(ctx, log, res, nil)
	}

	var report CopyReport
	if len(pending) > 0 {
		r.setState(t.Name, StateCopying)
		copier := NewCopier(CopierConfig{
			SrcRoot: t.Source,
			DstRoot: t.Destination,
			Workers: r.cfg.Workers,
			Verify:  t.Verify,
			Limiter: r.limiter,
			Stats:   collector,
			Logger:  log,
			Emit:    r.taskEmitter(t.Name),
		})
		report = copier.Copy(ctx, pending)
		copier.Close()

		res.FilesCopied = int64(len(report.Copied))
		res.BytesCopied = report.Bytes
		res.DirsCreated = report.DirsCreated
		res.Failures = append(res.Failures, report.Failed...)
	}

	if t.Mirror && len(changes.Deleted) > 0 && ctx.Err() == nil {
		_, failed := PruneDeleted(ctx, PruneConfig{
			DstRoot: t.Destination,
			Stats:   collector,
			Logger:  log,
			Emit:    r.taskEmitter(t.Name),
		}, changes.Deleted, scan)
		res.Failures = append(res.Failures, failed...)
	}

	r.setState(t.Name, StateFinalizing)
	next := nextManifest(t.Name, rts, prior, changes, report, kept)
	if err := r.cfg.Manifests.Write(next); err != nil {
		return r.fail(ctx, log, res, err)
	}
	log.Debug("manifest committed", "entries", next.Len(), "stats", collector.Snapshot().String())

	return r.finish(ctx, log, res, ctx.Err())
}

// priorManifest reads the task's last manifest. A manifest recorded for
// other roots describes a different backup, so the task starts over.
func (r *Runner) priorManifest(log *slog.Logger, name string, rts roots) (*Manifest, error) {
	prior, err := r.cfg.Manifests.Read(name)
	if err != nil {
		return nil, err
	}
	if prior.Len() > 0 && !prior.Targets(rts) {
		log.Info("task retargeted, backing up everything",
			"old_source", prior.Source, "old_destination", prior.Destination,
			"source", rts.Source, "destination", rts.Destination)
		return NewManifest(name), nil
	}
	return prior, nil
}

// splitDeleted removes from Deleted the paths that did not leave the
// source: those the scan could not read, returned to be carried forward,
// and those now excluded by the task's rules, which are dropped from the
// manifest but never removed from the destination.
func splitDeleted(cs ChangeSet, scan ScanResult, chain *filter.Chain) (ChangeSet, []string) {
	if len(cs.Deleted) == 0 || (len(scan.Errors) == 0 && chain.Empty()) {
		return cs, nil
	}
	var deleted, unreadable []string
	for _, p := range cs.Deleted {
		switch {
		case scan.Unreadable(p):
			unreadable = append(unreadable, p)
		case excludedPath(chain, p):
		default:
			deleted = append(deleted, p)
		}
	}
	cs.Deleted = deleted
	return cs, unreadable
}

// excludedPath reports whether the chain excludes relPath or any of its
// parent directories.
func excludedPath(chain *filter.Chain, relPath string) bool {
	if chain.Excluded(relPath, false) {
		return true
	}
	for dir := path.Dir(relPath); dir != "."; dir = path.Dir(dir) {
		if chain.Excluded(dir, true) {
			return true
		}
	}
	return false
}

// nextManifest builds the manifest to commit: unchanged and copied files at
// their current state, and the previous entry for anything that was not
// copied or could not be read this time. Files that failed with no previous
// entry are left out so the next run picks them up as new.
func nextManifest(name string, rts roots, prior *Manifest, cs ChangeSet, report CopyReport, unreadable []string) *Manifest {
	next := NewManifest(name)
	next.Source, next.Destination = rts.Source, rts.Destination
	keep := func(path string) {
		if e, ok := prior.Lookup(path); ok {
			next.Entries[path] = e
		}
	}

	for _, rec := range cs.Unchanged {
		keep(rec.RelPath)
	}
	for _, p := range unreadable {
		keep(p)
	}

	copied := make(map[string]struct{}, len(report.Copied))
	now := time.Now().UTC()
	for _, rec := range report.Copied {
		next.Record(rec, now)
		copied[rec.RelPath] = struct{}{}
	}
	for _, rec := range cs.Pending() {
		if _, ok := copied[rec.RelPath]; !ok {
			keep(rec.RelPath)
		}
	}
	return next
}

// Preview is the outcome of a dry run: what the next backup would do.
type Preview struct {
	Task       string
	Changes    ChangeSet
	ScanErrors []FileFailure
	Bytes      int64
	Skipped    int64
}

// Preview scans t's source and diffs it against the last manifest without
// writing anything.
func (r *Runner) Preview(ctx context.Context, t task.Task) (Preview, error) {
	rts, err := resolveRoots(t)
	if err != nil {
		return Preview{}, err
	}
	chain, err := filter.New(t.Exclude)
	if err != nil {
		return Preview{}, &ConfigError{Task: t.Name, Field: "exclude", Reason: err.Error()}
	}
	prior, err := r.priorManifest(r.cfg.Logger.With("task", t.Name), t.Name, rts)
	if err != nil {
		return Preview{}, err
	}
	scan, err := Scan(ctx, ScannerConfig{Root: t.Source, Filter: chain, Workers: r.cfg.Workers})
	if err != nil {
		return Preview{}, err
	}
	changes, _ := splitDeleted(Diff(scan.Records, prior), scan, chain)
	return Preview{
		Task:       t.Name,
		Changes:    changes,
		ScanErrors: scan.Errors,
		Bytes:      changes.PendingBytes(),
		Skipped:    scan.Skipped,
	}, nil
}

// fail ends a run with a fatal error.
func (r *Runner) fail(ctx context.Context, log *slog.Logger, res BackupResult, err error) (BackupResult, error) {
	res.Status = event.StatusFailure
	res.Error = err.Error()
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		res.Failures = append(res.Failures, FileFailure{Kind: ConfigErrorKind, Message: cfgErr.Error()})
	}
	log.Error("backup failed", "error", err)
	r.cfg.Observer.OnError(err)
	res, _ = r.finish(ctx, log, res, nil)
	return res, err
}

// finish settles the status, records the run and notifies the observer.
// runErr is the cancellation error, if any.
func (r *Runner) finish(ctx context.Context, log *slog.Logger, res BackupResult, runErr error) (BackupResult, error) {
	res.Duration = time.Since(res.StartedAt)
	switch {
	case res.Status != "":
	case runErr != nil:
		res.Status = event.StatusCanceled
		res.Error = runErr.Error()
	case len(res.Failures) > 0:
		res.Status = event.StatusPartial
	default:
		res.Status = event.StatusSuccess
	}

	if r.cfg.History != nil && res.Task != "" {
		// Canceled runs are still recorded.
		if err := r.cfg.History.Append(context.WithoutCancel(ctx), res); err != nil {
			log.Error("record history", "error", err)
		}
	}

	log.Info("backup finished",
		"status", res.Status,
		"copied", res.FilesCopied,
		"failed", len(res.Failures),
		"bytes", res.BytesCopied,
		"duration", res.Duration.Round(time.Millisecond))

	r.emit(event.Event{Type: event.RunCompleted, Task: res.Task, Done: res.FilesCopied})
	r.setState(res.Task, StateIdle)
	r.cfg.Observer.OnComplete(res, Notification(res))
	return res, runErr
}

func (r *Runner) setState(name string, s State) {
	r.emit(event.Event{Type: event.StateChanged, Task: name, State: string(s)})
}

func (r *Runner) emit(e event.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	r.cfg.Observer.OnProgress(e)
}

func (r *Runner) taskEmitter(name string) func(event.Event) {
	return func(e event.Event) {
		e.Task = name
		r.emit(e)
	}
}
