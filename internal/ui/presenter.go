package ui

import (
	"io"

	"github.com/bamsammich/banana/internal/event"
	"github.com/bamsammich/banana/internal/stats"
)

// Presenter consumes run events and displays progress.
type Presenter interface {
	// Run consumes events until the channel closes. Blocks until done.
	Run(events <-chan event.Event) error
}

// Config configures a Presenter.
type Config struct {
	Writer     io.Writer
	ErrWriter  io.Writer
	IsTTY      bool
	Quiet      bool
	Verbose    bool
	NoProgress bool
}

// NewPresenter creates the appropriate presenter based on configuration.
//
//nolint:ireturn // factory function returns interface by design
func NewPresenter(cfg Config) Presenter {
	if cfg.Quiet {
		return &quietPresenter{}
	}
	if !cfg.IsTTY || cfg.NoProgress {
		return &plainPresenter{
			w:       cfg.Writer,
			errW:    cfg.ErrWriter,
			verbose: cfg.Verbose,
			stats:   stats.NewCollector(),
		}
	}
	return &hudPresenter{
		w:     cfg.ErrWriter, // HUD renders to stderr (the TTY)
		stats: stats.NewCollector(),
	}
}

// track folds an event into the presenter's own counters. The engine's
// collector is internal to a run, so presenters rebuild the numbers they
// display from the event stream.
func track(c *stats.Collector, ev event.Event) {
	switch ev.Type {
	case event.ScanComplete:
		c.AddFilesScanned(ev.Total)
	case event.DiffComplete:
		c.SetTotals(ev.Total, ev.TotalSize)
	case event.FileCompleted:
		c.AddFilesCopied(1)
		c.AddBytesCopied(ev.Size)
	case event.FileFailed:
		c.AddFilesFailed(1)
	case event.FileSkipped:
		c.AddFilesSkipped(1)
	case event.DeleteFile:
		c.AddFilesDeleted(1)
	}
}
