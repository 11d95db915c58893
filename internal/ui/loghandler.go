package ui

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/juju/lumberjack/v2"
)

// MultiHandler fans log records out to several handlers, each applying its
// own level.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler returns a handler writing to every h.
func NewMultiHandler(h ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: h}
}

// Enabled reports whether any handler accepts level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: out}
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithGroup(name)
	}
	return &MultiHandler{handlers: out}
}

// LogConfig configures NewLogger.
type LogConfig struct {
	Stderr io.Writer
	// File, when set, receives JSON records at debug level through a
	// size-rotated writer.
	File       string
	MaxSizeMB  int
	MaxBackups int
	Level      slog.Level
}

// NewLogger builds the application logger: human-readable text on Stderr at
// cfg.Level, plus JSON in cfg.File when set. The returned closer flushes and
// closes the log file.
func NewLogger(cfg LogConfig) (*slog.Logger, io.Closer) {
	textH := slog.NewTextHandler(cfg.Stderr, &slog.HandlerOptions{Level: cfg.Level})
	if cfg.File == "" {
		return slog.New(textH), io.NopCloser(nil)
	}

	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}
	jsonH := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewMultiHandler(textH, jsonH)), rotator
}
