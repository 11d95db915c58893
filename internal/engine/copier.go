package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bamsammich/banana/internal/event"
	"github.com/bamsammich/banana/internal/stats"
)

const copyBufferSize = 256 * 1024

// CopierConfig configures a Copier.
type CopierConfig struct {
	Limiter *rate.Limiter
	Stats   *stats.Collector
	Emit    func(event.Event)
	Logger  *slog.Logger
	SrcRoot string
	DstRoot string
	Workers int
	Verify  bool
}

// CopyReport summarizes one Copy call.
type CopyReport struct {
	// Copied holds the files now present at the destination, in path order.
	Copied []FileRecord
	// Failed holds the files that could not be copied, in path order.
	Failed      []FileFailure
	Bytes       int64
	DirsCreated int64
	// Canceled is set when the context ended before every file was
	// attempted.
	Canceled bool
}

// Copier copies files from a source tree into a destination tree,
// preserving relative paths. Each file is written to a temp file beside its
// target and renamed into place, so the destination never holds a partial
// file under its final name.
type Copier struct {
	cfg   CopierConfig
	tmps  tmpRegistry
	dirMu sync.Mutex
	dirs  map[string]struct{}
	done  atomic.Int64
}

// NewCopier returns a Copier for cfg.
func NewCopier(cfg CopierConfig) *Copier {
	if cfg.Workers <= 0 {
		cfg.Workers = min(runtime.NumCPU(), 8)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Copier{cfg: cfg, dirs: make(map[string]struct{})}
}

type copyResult struct {
	failure   *FileFailure
	bytes     int64
	attempted bool
}

// Copy copies files with up to cfg.Workers concurrent transfers. A failed
// file does not stop the others. Cancellation is honored between files: a
// transfer already in progress runs to completion.
func (c *Copier) Copy(ctx context.Context, files []FileRecord) CopyReport {
	total := int64(len(files))
	results := make([]copyResult, len(files))
	c.done.Store(0)

	var created atomic.Int64

	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)
	for i, rec := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i].attempted = true
			c.emit(event.Event{Type: event.FileStarted, Path: rec.RelPath, Size: rec.Size, Total: total})

			n, dirs, err := c.copyFile(rec)
			created.Add(dirs)
			done := c.done.Add(1)
			if err != nil {
				f := newFailure(rec.RelPath, err)
				results[i].failure = &f
				c.cfg.Logger.Warn("copy failed", "path", rec.RelPath, "kind", f.Kind, "error", err)
				if c.cfg.Stats != nil {
					c.cfg.Stats.AddFilesFailed(1)
				}
				c.emit(event.Event{Type: event.FileFailed, Path: rec.RelPath, Size: rec.Size, Done: done, Total: total, Error: err})
				return nil
			}
			results[i].bytes = n
			if c.cfg.Stats != nil {
				c.cfg.Stats.AddFilesCopied(1)
				c.cfg.Stats.AddBytesCopied(n)
			}
			c.emit(event.Event{Type: event.FileCompleted, Path: rec.RelPath, Size: n, Done: done, Total: total})
			return nil
		})
	}
	_ = g.Wait()

	var report CopyReport
	for i, r := range results {
		switch {
		case !r.attempted:
			report.Canceled = true
		case r.failure != nil:
			report.Failed = append(report.Failed, *r.failure)
		default:
			report.Copied = append(report.Copied, files[i])
			report.Bytes += r.bytes
		}
	}
	report.DirsCreated = created.Load()
	return report
}

// Close removes any temp files left by transfers that did not finish.
func (c *Copier) Close() {
	if n := c.tmps.cleanup(); n > 0 {
		c.cfg.Logger.Debug("removed leftover temp files", "count", n)
	}
}

func (c *Copier) emit(e event.Event) {
	if c.cfg.Emit == nil {
		return
	}
	e.Timestamp = time.Now()
	c.cfg.Emit(e)
}

// copyFile copies one file and returns the bytes written and the number of
// destination directories it had to create.
func (c *Copier) copyFile(rec FileRecord) (int64, int64, error) {
	srcPath := filepath.Join(c.cfg.SrcRoot, filepath.FromSlash(rec.RelPath))
	dstPath := filepath.Join(c.cfg.DstRoot, filepath.FromSlash(rec.RelPath))

	dirs, err := c.ensureDir(path.Dir(rec.RelPath))
	if err != nil {
		return 0, dirs, err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return 0, dirs, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, dirs, fmt.Errorf("stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, dirs, fmt.Errorf("%s is no longer a regular file", rec.RelPath)
	}

	dir, base := filepath.Split(dstPath)
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%s.banana-tmp", base, uuid.New().String()[:8]))

	c.tmps.register(tmpPath)
	defer func() {
		c.tmps.deregister(tmpPath)
		_ = os.Remove(tmpPath) // no-op if rename succeeded
	}()

	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return 0, dirs, fmt.Errorf("create temp: %w", err)
	}

	preallocate(tmp, info.Size())

	buf := make([]byte, copyBufferSize)
	n, err := io.CopyBuffer(tmp, throttle(src, c.cfg.Limiter), buf)
	if err != nil {
		tmp.Close()
		return n, dirs, fmt.Errorf("copy data: %w", err)
	}

	// Chmod explicitly: OpenFile's mode is filtered by the umask.
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		tmp.Close()
		return n, dirs, fmt.Errorf("chmod: %w", err)
	}
	if err := setTimes(tmp, accessTime(info), info.ModTime()); err != nil {
		tmp.Close()
		return n, dirs, err
	}
	if err := tmp.Close(); err != nil {
		return n, dirs, fmt.Errorf("close temp: %w", err)
	}

	if c.cfg.Verify {
		if err := verifyCopy(srcPath, tmpPath); err != nil {
			return n, dirs, err
		}
	}

	if err := os.Rename(tmpPath, dstPath); err != nil {
		return n, dirs, fmt.Errorf("rename into place: %w", err)
	}
	return n, dirs, nil
}

// ensureDir creates relDir and its missing parents under the destination
// root and returns how many directories it created.
func (c *Copier) ensureDir(relDir string) (int64, error) {
	if relDir == "." || relDir == "" {
		return 0, nil
	}

	c.dirMu.Lock()
	defer c.dirMu.Unlock()

	if _, ok := c.dirs[relDir]; ok {
		return 0, nil
	}

	var created int64
	parts := strings.Split(relDir, "/")
	for i := range parts {
		prefix := strings.Join(parts[:i+1], "/")
		if _, ok := c.dirs[prefix]; ok {
			continue
		}
		full := filepath.Join(c.cfg.DstRoot, filepath.FromSlash(prefix))
		err := os.Mkdir(full, 0o755)
		switch {
		case err == nil:
			created++
			if c.cfg.Stats != nil {
				c.cfg.Stats.AddDirsCreated(1)
			}
		case errors.Is(err, os.ErrExist):
			info, serr := os.Stat(full)
			if serr != nil {
				return created, fmt.Errorf("stat %s: %w", prefix, serr)
			}
			if !info.IsDir() {
				return created, fmt.Errorf("destination %s exists and is not a directory", prefix)
			}
		default:
			return created, fmt.Errorf("create directory %s: %w", prefix, err)
		}
		c.dirs[prefix] = struct{}{}
	}
	return created, nil
}
