package ui

import (
	"fmt"

	"github.com/bamsammich/banana/internal/engine"
	"github.com/bamsammich/banana/internal/event"
)

// ResultSummary builds the final line for a run.
// Format: docs ✓  added 3  modified 1  copied 4  size 2.1 MiB  time 3s  errors 0
func ResultSummary(r engine.BackupResult) string {
	icon := "✓"
	switch r.Status {
	case event.StatusPartial:
		icon = "!"
	case event.StatusFailure, event.StatusCanceled:
		icon = "✗"
	}

	s := fmt.Sprintf("%s %s  added %s  modified %s  copied %s  size %s  time %s",
		r.Task, icon,
		FormatCount(r.FilesAdded),
		FormatCount(r.FilesModified),
		FormatCount(r.FilesCopied),
		FormatBytes(r.BytesCopied),
		FormatDuration(r.Duration),
	)
	if r.FilesDeleted > 0 {
		s += "  deleted " + FormatCount(r.FilesDeleted)
	}
	return s + fmt.Sprintf("  errors %d", len(r.Failures))
}

// FormatNotification renders a completion notification as one line.
func FormatNotification(n event.Notification) string {
	return fmt.Sprintf("[%s] %s", n.Task, n.Message)
}
