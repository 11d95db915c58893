package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/banana/internal/event"
)

func TestNotification(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		res  BackupResult
		want string
	}{
		{"copied", BackupResult{Status: event.StatusSuccess, FilesAdded: 1, FilesCopied: 1}, "Backup completed successfully."},
		{"no changes", BackupResult{Status: event.StatusSuccess}, "No changes detected."},
		{"partial", BackupResult{Status: event.StatusPartial, Failures: make([]FileFailure, 2)}, "Backup completed with 2 errors. Please check the error log."},
		{"failure", BackupResult{Status: event.StatusFailure}, "Backup failed. Please check the error log."},
		{"canceled", BackupResult{Status: event.StatusCanceled}, "Backup canceled."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tt.res.Task = "docs"
			n := Notification(tt.res)
			assert.Equal(t, tt.want, n.Message)
			assert.Equal(t, "docs", n.Task)
			assert.Equal(t, tt.res.Status, n.Status)
		})
	}
}

func TestChanObserverNeverBlocks(t *testing.T) {
	t.Parallel()
	o := NewChanObserver(1)
	o.OnProgress(event.Event{Type: event.FileStarted})
	o.OnProgress(event.Event{Type: event.FileCompleted}) // dropped
	o.OnError(errors.New("a"))
	o.OnError(errors.New("b")) // dropped
	o.OnComplete(BackupResult{ID: "1"}, event.Notification{})
	o.OnComplete(BackupResult{ID: "2"}, event.Notification{}) // dropped

	assert.Equal(t, event.FileStarted, (<-o.Events).Type)
	assert.EqualError(t, <-o.Errors, "a")
	assert.Equal(t, "1", (<-o.Completions).Result.ID)
	assert.Empty(t, o.Events)
}

func TestMultiObserverFansOut(t *testing.T) {
	t.Parallel()
	a, b := NewChanObserver(4), NewChanObserver(4)
	m := MultiObserver{a, b, NopObserver{}}
	m.OnProgress(event.Event{Type: event.DeleteFile, Path: "x"})
	m.OnError(errors.New("boom"))

	for _, o := range []*ChanObserver{a, b} {
		assert.Equal(t, "x", (<-o.Events).Path)
		assert.EqualError(t, <-o.Errors, "boom")
	}
}
