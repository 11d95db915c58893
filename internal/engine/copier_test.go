package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bamsammich/banana/internal/event"
	"github.com/bamsammich/banana/internal/stats"
)

type eventLog struct {
	mu     sync.Mutex
	events []event.Event
}

func (l *eventLog) emit(e event.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) ofType(typ event.Type) []event.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []event.Event
	for _, e := range l.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func scanRecords(t *testing.T, root string) []FileRecord {
	t.Helper()
	res, err := Scan(context.Background(), ScannerConfig{Root: root})
	require.NoError(t, err)
	return res.Records
}

func TestCopyPreservesContentModeAndTimes(t *testing.T) {
	t.Parallel()
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "a.txt", "alpha", baseTime)
	writeFile(t, src, "sub/deep/b.sh", "#!/bin/sh\n", baseTime)
	require.NoError(t, os.Chmod(filepath.Join(src, "sub/deep/b.sh"), 0o750))

	collector := stats.NewCollector()
	c := NewCopier(CopierConfig{SrcRoot: src, DstRoot: dst, Workers: 2, Stats: collector})
	defer c.Close()
	report := c.Copy(context.Background(), scanRecords(t, src))

	assert.Empty(t, report.Failed)
	assert.False(t, report.Canceled)
	assert.Equal(t, []string{"a.txt", "sub/deep/b.sh"}, relPaths(report.Copied))
	assert.Equal(t, int64(15), report.Bytes)
	assert.Equal(t, int64(2), report.DirsCreated)

	assert.Equal(t, "alpha", readFile(t, dst, "a.txt"))
	info, err := os.Stat(filepath.Join(dst, "sub/deep/b.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
	assert.True(t, info.ModTime().Equal(baseTime))

	snap := collector.Snapshot()
	assert.Equal(t, int64(2), snap.FilesCopied)
	assert.Equal(t, int64(15), snap.BytesCopied)
	assert.Equal(t, int64(2), snap.DirsCreated)
}

func TestCopyOverwritesExisting(t *testing.T) {
	t.Parallel()
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "a.txt", "new content", baseTime)
	writeFile(t, dst, "a.txt", "old", baseTime)

	c := NewCopier(CopierConfig{SrcRoot: src, DstRoot: dst})
	report := c.Copy(context.Background(), scanRecords(t, src))
	c.Close()

	assert.Empty(t, report.Failed)
	assert.Equal(t, "new content", readFile(t, dst, "a.txt"))
	assert.Equal(t, int64(0), report.DirsCreated)
}

func TestCopyLeavesNoTempFiles(t *testing.T) {
	t.Parallel()
	src, dst := t.TempDir(), t.TempDir()
	for _, name := range []string{"a", "b", "c", "d/e", "d/f"} {
		writeFile(t, src, name, name, baseTime)
	}
	c := NewCopier(CopierConfig{SrcRoot: src, DstRoot: dst, Workers: 4})
	c.Copy(context.Background(), scanRecords(t, src))
	c.Close()

	err := filepath.WalkDir(dst, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		assert.False(t, strings.HasSuffix(d.Name(), ".banana-tmp"), path)
		return nil
	})
	require.NoError(t, err)
}

func TestCopyProgressEvents(t *testing.T) {
	t.Parallel()
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "a", "1", baseTime)
	writeFile(t, src, "b", "22", baseTime)
	writeFile(t, src, "c", "333", baseTime)

	var log eventLog
	c := NewCopier(CopierConfig{SrcRoot: src, DstRoot: dst, Workers: 1, Emit: log.emit})
	c.Copy(context.Background(), scanRecords(t, src))
	c.Close()

	started := log.ofType(event.FileStarted)
	completed := log.ofType(event.FileCompleted)
	require.Len(t, started, 3)
	require.Len(t, completed, 3)
	for i, e := range completed {
		assert.Equal(t, int64(i+1), e.Done)
		assert.Equal(t, int64(3), e.Total)
		assert.False(t, e.Timestamp.IsZero())
	}
	assert.Equal(t, "c", completed[2].Path)
	assert.Equal(t, int64(3), completed[2].Size)
}

func TestCopyPermissionDeniedContinues(t *testing.T) {
	skipIfRoot(t)
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "a.txt", "a", baseTime)
	writeFile(t, src, "b.txt", "b", baseTime)
	writeFile(t, src, "c.txt", "c", baseTime)
	records := scanRecords(t, src)

	locked := filepath.Join(src, "b.txt")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

	var log eventLog
	c := NewCopier(CopierConfig{SrcRoot: src, DstRoot: dst, Emit: log.emit})
	report := c.Copy(context.Background(), records)
	c.Close()

	assert.Equal(t, []string{"a.txt", "c.txt"}, relPaths(report.Copied))
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "b.txt", report.Failed[0].Path)
	assert.Equal(t, PermissionError, report.Failed[0].Kind)
	assert.Len(t, log.ofType(event.FileFailed), 1)
	assert.NoFileExists(t, filepath.Join(dst, "b.txt"))
}

func TestCopyVanishedSourceIsIOError(t *testing.T) {
	t.Parallel()
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "a.txt", "a", baseTime)
	records := scanRecords(t, src)
	require.NoError(t, os.Remove(filepath.Join(src, "a.txt")))

	c := NewCopier(CopierConfig{SrcRoot: src, DstRoot: dst})
	report := c.Copy(context.Background(), records)
	c.Close()

	require.Len(t, report.Failed, 1)
	assert.Equal(t, OtherIOError, report.Failed[0].Kind)
	assert.Empty(t, report.Copied)
}

func TestCopyDirectoryConflict(t *testing.T) {
	t.Parallel()
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "sub/a.txt", "a", baseTime)
	writeFile(t, dst, "sub", "i am a file", baseTime)

	c := NewCopier(CopierConfig{SrcRoot: src, DstRoot: dst})
	report := c.Copy(context.Background(), scanRecords(t, src))
	c.Close()

	require.Len(t, report.Failed, 1)
	assert.Contains(t, report.Failed[0].Message, "not a directory")
}

func TestCopyWithVerify(t *testing.T) {
	t.Parallel()
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "a.bin", strings.Repeat("x", 100_000), baseTime)

	c := NewCopier(CopierConfig{SrcRoot: src, DstRoot: dst, Verify: true})
	report := c.Copy(context.Background(), scanRecords(t, src))
	c.Close()

	assert.Empty(t, report.Failed)
	assert.Len(t, report.Copied, 1)
}

func TestCopyCanceledBeforeStart(t *testing.T) {
	t.Parallel()
	src, dst := t.TempDir(), t.TempDir()
	writeFile(t, src, "a.txt", "a", baseTime)
	writeFile(t, src, "b.txt", "b", baseTime)
	records := scanRecords(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCopier(CopierConfig{SrcRoot: src, DstRoot: dst})
	report := c.Copy(ctx, records)
	c.Close()

	assert.True(t, report.Canceled)
	assert.Empty(t, report.Copied)
	assert.Empty(t, report.Failed)
	assert.NoFileExists(t, filepath.Join(dst, "a.txt"))
}

func TestCopyStopsAtFileBoundary(t *testing.T) {
	t.Parallel()
	src, dst := t.TempDir(), t.TempDir()
	for _, name := range []string{"a", "b", "c", "d"} {
		writeFile(t, src, name, name, baseTime)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := NewCopier(CopierConfig{
		SrcRoot: src,
		DstRoot: dst,
		Workers: 1,
		Emit: func(e event.Event) {
			if e.Type == event.FileCompleted && e.Path == "b" {
				cancel()
			}
		},
	})
	report := c.Copy(ctx, scanRecords(t, src))
	c.Close()

	assert.True(t, report.Canceled)
	assert.Equal(t, []string{"a", "b"}, relPaths(report.Copied))
	assert.Equal(t, "b", readFile(t, dst, "b"))
	assert.NoFileExists(t, filepath.Join(dst, "c"))
}
