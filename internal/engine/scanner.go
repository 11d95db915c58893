package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bamsammich/banana/internal/event"
	"github.com/bamsammich/banana/internal/filter"
	"github.com/bamsammich/banana/internal/stats"
)

// ScannerConfig controls scanner behavior.
type ScannerConfig struct {
	Filter  *filter.Chain
	Stats   *stats.Collector
	Root    string
	Workers int

	// Emit receives a FileSkipped event per symlink or special file. It is
	// called from several goroutines. Optional.
	Emit func(event.Event)
}

// ScanResult is the outcome of walking a source tree.
type ScanResult struct {
	// Records holds every regular file, sorted by RelPath.
	Records []FileRecord
	// Errors holds paths that could not be stat'ed or read. The walk
	// continues past them.
	Errors []FileFailure
	// Skipped counts symlinks and special files, which are never followed
	// or backed up.
	Skipped int64
}

// Unreadable reports whether relPath is, or lies beneath, a path the scan
// failed on. Such paths are absent from Records without having been
// deleted.
func (r ScanResult) Unreadable(relPath string) bool {
	for _, f := range r.Errors {
		if f.Path == "." || relPath == f.Path || strings.HasPrefix(relPath, f.Path+"/") {
			return true
		}
	}
	return false
}

type scanner struct {
	cfg     ScannerConfig
	sem     chan struct{}
	mu      sync.Mutex
	records []FileRecord
	errs    []FileFailure
	skipped int64
}

// Scan walks cfg.Root with a bounded number of directory workers and
// returns a FileRecord for every regular file beneath it. Symbolic links
// are not followed. Per-path failures are collected in the result; only a
// missing or unreadable root and context cancellation are returned as
// errors.
func Scan(ctx context.Context, cfg ScannerConfig) (ScanResult, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = min(runtime.NumCPU(), 8)
	}

	info, err := os.Stat(cfg.Root)
	if err != nil {
		return ScanResult{}, fmt.Errorf("stat source %s: %w", cfg.Root, err)
	}
	if !info.IsDir() {
		return ScanResult{}, fmt.Errorf("source %s is not a directory", cfg.Root)
	}
	if _, err := os.ReadDir(cfg.Root); err != nil {
		return ScanResult{}, fmt.Errorf("read source %s: %w", cfg.Root, err)
	}

	s := &scanner{cfg: cfg, sem: make(chan struct{}, cfg.Workers)}

	var outstanding sync.WaitGroup // directories queued but not yet processed
	var visit func(dir string)
	visit = func(dir string) {
		outstanding.Add(1)
		go func() {
			defer outstanding.Done()
			select {
			case s.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			subdirs := s.scanDir(ctx, dir)
			<-s.sem
			for _, sub := range subdirs {
				visit(sub)
			}
		}()
	}
	visit(cfg.Root)
	outstanding.Wait()

	if err := ctx.Err(); err != nil {
		return ScanResult{}, err
	}

	sort.Slice(s.records, func(i, j int) bool { return s.records[i].RelPath < s.records[j].RelPath })
	sort.Slice(s.errs, func(i, j int) bool { return s.errs[i].Path < s.errs[j].Path })
	return ScanResult{Records: s.records, Errors: s.errs, Skipped: s.skipped}, nil
}

// scanDir records the regular files in dir and returns the subdirectories
// still to visit.
func (s *scanner) scanDir(ctx context.Context, dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.fail(dir, fmt.Errorf("readdir: %w", err))
		return nil
	}

	var subdirs []string
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil
		}

		path := filepath.Join(dir, entry.Name())
		rel := s.rel(path)

		info, err := os.Lstat(path)
		if err != nil {
			s.fail(path, fmt.Errorf("lstat: %w", err))
			continue
		}

		mode := info.Mode()
		switch {
		case mode.IsDir():
			if !s.cfg.Filter.Excluded(rel, true) {
				subdirs = append(subdirs, path)
			}
		case mode.IsRegular():
			if s.cfg.Filter.Excluded(rel, false) {
				continue
			}
			s.add(FileRecord{RelPath: rel, Size: info.Size(), ModTime: info.ModTime()})
		default:
			// Symlinks, sockets, devices, FIFOs.
			s.mu.Lock()
			s.skipped++
			s.mu.Unlock()
			if s.cfg.Stats != nil {
				s.cfg.Stats.AddFilesSkipped(1)
			}
			if s.cfg.Emit != nil {
				s.cfg.Emit(event.Event{Type: event.FileSkipped, Path: rel})
			}
		}
	}
	return subdirs
}

func (s *scanner) rel(path string) string {
	rel, err := filepath.Rel(s.cfg.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (s *scanner) add(r FileRecord) {
	s.mu.Lock()
	s.records = append(s.records, r)
	s.mu.Unlock()
	if s.cfg.Stats != nil {
		s.cfg.Stats.AddFilesScanned(1)
	}
}

func (s *scanner) fail(path string, err error) {
	s.mu.Lock()
	s.errs = append(s.errs, newFailure(s.rel(path), err))
	s.mu.Unlock()
}
