package engine

import (
	"fmt"
	"time"

	"github.com/bamsammich/banana/internal/event"
)

// BackupResult is the history record of one run.
type BackupResult struct {
	StartedAt     time.Time     `json:"started_at"`
	ID            string        `json:"id"`
	Task          string        `json:"task"`
	Source        string        `json:"source"`
	Destination   string        `json:"destination"`
	Status        event.Status  `json:"status"`
	Error         string        `json:"error,omitempty"`
	Failures      []FileFailure `json:"failures,omitempty"`
	Duration      time.Duration `json:"duration"`
	FilesAdded    int64         `json:"files_added"`
	FilesModified int64         `json:"files_modified"`
	FilesCopied   int64         `json:"files_copied"`
	// FilesDeleted counts files gone from the source since the last run.
	// They are removed from the destination only for mirrored tasks.
	FilesDeleted int64 `json:"files_deleted"`
	BytesCopied  int64 `json:"bytes_copied"`
	DirsCreated  int64 `json:"dirs_created"`
}

// NoChanges reports whether the run found nothing to do.
func (r BackupResult) NoChanges() bool {
	return r.Status == event.StatusSuccess && r.FilesAdded == 0 && r.FilesModified == 0 && r.FilesDeleted == 0
}

// Notification builds the short completion message for r.
func Notification(r BackupResult) event.Notification {
	n := event.Notification{Task: r.Task, Status: r.Status}
	switch r.Status {
	case event.StatusSuccess:
		if r.NoChanges() {
			n.Message = "No changes detected."
		} else {
			n.Message = "Backup completed successfully."
		}
	case event.StatusPartial:
		n.Message = fmt.Sprintf("Backup completed with %d errors. Please check the error log.", len(r.Failures))
	case event.StatusCanceled:
		n.Message = "Backup canceled."
	default:
		n.Message = "Backup failed. Please check the error log."
	}
	return n
}
