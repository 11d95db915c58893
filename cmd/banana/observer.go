package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bamsammich/banana/internal/engine"
	"github.com/bamsammich/banana/internal/event"
	"github.com/bamsammich/banana/internal/ui"
)

// eventLogger writes every progress event as a debug record, which the
// --log JSON handler keeps.
type eventLogger struct {
	logger *slog.Logger
}

func (l eventLogger) OnProgress(ev event.Event) {
	attrs := []slog.Attr{
		slog.String("type", ev.Type.String()),
		slog.String("task", ev.Task),
	}
	if ev.Path != "" {
		attrs = append(attrs, slog.String("path", ev.Path), slog.Int64("size", ev.Size))
	}
	if ev.State != "" {
		attrs = append(attrs, slog.String("state", ev.State))
	}
	if ev.Error != nil {
		attrs = append(attrs, slog.String("error", ev.Error.Error()))
	}
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "banana.event", attrs...)
}

func (l eventLogger) OnComplete(r engine.BackupResult, n event.Notification) {
	l.logger.Debug("banana.notification", "task", n.Task, "status", n.Status, "run", r.ID)
}

func (eventLogger) OnError(error) {}

// notifier prints one line per finished run. Used by the scheduler, where
// no presenter is attached.
type notifier struct {
	mu sync.Mutex
	w  io.Writer
}

func (*notifier) OnProgress(event.Event) {}

func (n *notifier) OnComplete(r engine.BackupResult, note event.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, ui.FormatNotification(note))
	fmt.Fprintln(n.w, "  "+ui.ResultSummary(r))
}

func (*notifier) OnError(error) {}
