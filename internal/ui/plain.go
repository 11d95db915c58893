package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/bamsammich/banana/internal/event"
	"github.com/bamsammich/banana/internal/stats"
)

// plainPresenter writes one line per file to w and periodic progress to
// errW. Used when output is not a terminal.
type plainPresenter struct {
	w       io.Writer
	errW    io.Writer
	stats   *stats.Collector
	verbose bool
}

func (p *plainPresenter) Run(events <-chan event.Event) error {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			track(p.stats, ev)
			p.handleEvent(ev)
		case <-ticker.C:
			p.stats.Tick()
			p.printProgress()
		}
	}
}

func (p *plainPresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.StateChanged:
		if p.verbose {
			fmt.Fprintf(p.errW, "%s: %s\n", ev.Task, ev.State)
		}
	case event.DiffComplete:
		fmt.Fprintf(p.w, "%s: %s files to copy (%s)\n",
			ev.Task, FormatCount(ev.Total), FormatBytes(ev.TotalSize))
	case event.FileCompleted:
		fmt.Fprintf(p.w, "%s  %s\n", ev.Path, FormatBytes(ev.Size))
	case event.FileFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		fmt.Fprintf(p.w, "%s  %s  %s\n", ev.Path, FormatBytes(ev.Size), errMsg)
	case event.FileSkipped:
		if p.verbose {
			fmt.Fprintf(p.errW, "skip: %s (not a regular file)\n", ev.Path)
		}
	case event.DeleteFile:
		fmt.Fprintf(p.w, "delete: %s\n", ev.Path)
	}
}

func (p *plainPresenter) printProgress() {
	snap := p.stats.Snapshot()
	if snap.BytesTotal > 0 {
		pct := float64(snap.BytesCopied) / float64(snap.BytesTotal) * 100
		fmt.Fprintf(p.errW, "progress: %.0f%% %s/%s %s/%s files %s eta %s\n",
			pct,
			FormatBytes(snap.BytesCopied), FormatBytes(snap.BytesTotal),
			FormatCount(snap.FilesCopied), FormatCount(snap.FilesTotal),
			FormatRate(p.stats.RollingSpeed(10)),
			FormatETA(p.stats.ETA()),
		)
		return
	}
	fmt.Fprintf(p.errW, "progress: %s scanned\n", FormatCount(snap.FilesScanned))
}
