package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/bamsammich/banana/internal/event"
	"github.com/bamsammich/banana/internal/stats"
)

// PruneConfig controls the mirror-delete pass.
type PruneConfig struct {
	Stats   *stats.Collector
	Emit    func(event.Event)
	Logger  *slog.Logger
	DstRoot string
}

func (c PruneConfig) emit(e event.Event) {
	if c.Emit == nil {
		return
	}
	e.Timestamp = time.Now()
	c.Emit(e)
}

// PruneDeleted removes the destination copies of files that vanished from
// the source. Paths under a location the scan could not read are kept,
// since the source file may still exist. Directories left empty by the
// removals are removed too, deepest first. It returns the paths removed and
// the removals that failed.
func PruneDeleted(ctx context.Context, cfg PruneConfig, deleted []string, scan ScanResult) ([]string, []FileFailure) {
	var removed []string
	var failed []FileFailure
	parents := make(map[string]struct{})

	for _, relPath := range deleted {
		if ctx.Err() != nil {
			break
		}
		if scan.Unreadable(relPath) {
			if cfg.Logger != nil {
				cfg.Logger.Debug("keeping file under unreadable source path", "path", relPath)
			}
			continue
		}

		cfg.emit(event.Event{Type: event.DeleteFile, Path: relPath})
		err := os.Remove(filepath.Join(cfg.DstRoot, filepath.FromSlash(relPath)))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			failed = append(failed, newFailure(relPath, fmt.Errorf("delete: %w", err)))
			continue
		}
		removed = append(removed, relPath)
		if cfg.Stats != nil {
			cfg.Stats.AddFilesDeleted(1)
		}
		for dir := path.Dir(relPath); dir != "."; dir = path.Dir(dir) {
			parents[dir] = struct{}{}
		}
	}

	dirs := make([]string, 0, len(parents))
	for d := range parents {
		dirs = append(dirs, d)
	}
	// Reverse lexical order visits children before their parents.
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, d := range dirs {
		// Fails harmlessly when the directory still has content.
		_ = os.Remove(filepath.Join(cfg.DstRoot, filepath.FromSlash(d)))
	}
	return removed, failed
}
