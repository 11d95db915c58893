package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/banana/internal/engine"
	"github.com/bamsammich/banana/internal/event"
	"github.com/bamsammich/banana/internal/task"
)

func TestWriteTasks(t *testing.T) {
	var buf bytes.Buffer
	tasks := []task.Task{
		{Name: "docs", Source: "/home/u/docs", Destination: "/mnt/b/docs",
			Schedule: &task.Schedule{Frequency: task.Daily, Time: "02:00"}},
		{Name: "photos", Source: "/home/u/pics", Destination: "/mnt/b/pics"},
	}
	last := map[string]engine.BackupResult{
		"docs": {Task: "docs", Status: event.StatusPartial, StartedAt: time.Now().Add(-2 * time.Hour)},
	}
	WriteTasks(&buf, tasks, last)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[1], "daily at 02:00")
	assert.Contains(t, lines[1], "2 hours ago")
	assert.Contains(t, lines[1], "partial")
	assert.Contains(t, lines[2], "manual")
	assert.Contains(t, lines[2], "never")
}

func TestWriteTasksEmpty(t *testing.T) {
	var buf bytes.Buffer
	WriteTasks(&buf, nil, nil)
	assert.Equal(t, "no tasks defined\n", buf.String())
}

func TestWriteHistory(t *testing.T) {
	var buf bytes.Buffer
	WriteHistory(&buf, []engine.BackupResult{
		{
			ID: "0123456789abcdef", Task: "docs", Status: event.StatusSuccess,
			FilesAdded: 1500, FilesCopied: 1500, BytesCopied: 2048,
			Duration: 3 * time.Second,
		},
		{
			ID: "fedcba98", Task: "docs", Status: event.StatusFailure,
			Error: "source does not exist",
		},
	})

	out := buf.String()
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "1,500")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "failure")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(lines[2]), "1"), "config failure counts as one error")
}

func TestWriteHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	WriteHistory(&buf, nil)
	assert.Equal(t, "no runs recorded\n", buf.String())
}

func TestWriteFailureLog(t *testing.T) {
	var buf bytes.Buffer
	WriteFailureLog(&buf, []engine.BackupResult{
		{
			ID: "run-1", Task: "docs", Status: event.StatusPartial,
			Failures: []engine.FileFailure{
				{Path: "secret.txt", Kind: engine.PermissionError, Message: "permission denied"},
			},
		},
		{ID: "run-2", Task: "music", Status: event.StatusFailure, Error: "destination is inside source"},
	})

	out := buf.String()
	assert.Contains(t, out, "secret.txt")
	assert.Contains(t, out, string(engine.PermissionError))
	assert.Contains(t, out, "  destination is inside source\n")
	assert.Contains(t, out, "\n\n", "runs are separated by a blank line")
}

func TestWriteRun(t *testing.T) {
	var buf bytes.Buffer
	WriteRun(&buf, engine.BackupResult{
		ID:          "0123456789abcdef",
		Task:        "docs",
		Source:      "/home/u/docs",
		Destination: "/mnt/b/docs",
		Status:      event.StatusPartial,
		FilesAdded:  2,
		FilesCopied: 1,
		BytesCopied: 2048,
		Failures: []engine.FileFailure{
			{Path: "secret.txt", Kind: engine.PermissionError, Message: "permission denied"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "/mnt/b/docs")
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "2 added, 0 modified, 0 deleted, 1 copied")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "secret.txt")
	assert.Contains(t, out, "permission denied")
	assert.NotContains(t, out, "Error:")
}

func TestWritePreview(t *testing.T) {
	p := engine.Preview{
		Task: "docs",
		Changes: engine.ChangeSet{
			Added:     []engine.FileRecord{{RelPath: "new.txt", Size: 10}},
			Modified:  []engine.FileRecord{{RelPath: "changed.txt", Size: 20}},
			Unchanged: []engine.FileRecord{{RelPath: "same.txt", Size: 5}},
			Deleted:   []string{"gone.txt"},
		},
		Bytes: 30,
	}

	var buf bytes.Buffer
	WritePreview(&buf, p, false)
	assert.Equal(t, "docs: 1 added, 1 modified, 1 deleted, 1 unchanged, 30 B to copy\n", buf.String())

	buf.Reset()
	WritePreview(&buf, p, true)
	out := buf.String()
	assert.Contains(t, out, "new.txt")
	assert.Contains(t, out, "changed.txt")
	assert.Contains(t, out, "gone.txt")
	assert.NotContains(t, out, "same.txt")
}
