package ui

import (
	"fmt"
	"io"
	"path"
	"time"

	"github.com/bamsammich/banana/internal/event"
	"github.com/bamsammich/banana/internal/stats"
)

// ANSI escape sequences.
const (
	ansiDim   = "\033[2m"
	ansiReset = "\033[0m"
)

const (
	sparklineWidth   = 20
	progressBarWidth = 20
	hudLines         = 2
	hudMinInterval   = 50 * time.Millisecond // don't redraw faster than this
)

// hudPresenter prints a scrolling feed of finished files above a two-line
// status block that redraws in place.
type hudPresenter struct {
	w     io.Writer
	stats *stats.Collector

	task        string
	state       string
	hudDrawn    bool
	lastHUDDraw time.Time
}

func (p *hudPresenter) Run(events <-chan event.Event) error {
	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	// Redraw while a large file is copying and no events arrive.
	redrawTicker := time.NewTicker(100 * time.Millisecond)
	defer redrawTicker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.clearHUD()
				return nil
			}
			track(p.stats, ev)
			p.handleEvent(ev)
			p.maybeDrawHUD()

		case <-redrawTicker.C:
			p.drawHUD()

		case <-secTicker.C:
			p.stats.Tick()
		}
	}
}

func (p *hudPresenter) handleEvent(ev event.Event) {
	switch ev.Type {
	case event.StateChanged:
		p.task, p.state = ev.Task, ev.State

	case event.FileCompleted:
		p.feed(fmt.Sprintf("✓  %s  %10s", styledPath(ev.Path), FormatBytes(ev.Size)))

	case event.FileFailed:
		errMsg := "error"
		if ev.Error != nil {
			errMsg = ev.Error.Error()
		}
		p.feed(fmt.Sprintf("✗  %s  %s", styledPath(ev.Path), errMsg))

	case event.DeleteFile:
		p.feed(fmt.Sprintf("×  %s  %sdeleted%s", styledPath(ev.Path), ansiDim, ansiReset))
	}
}

// feed prints a line above the HUD.
func (p *hudPresenter) feed(line string) {
	p.clearHUD()
	fmt.Fprintln(p.w, line)
	p.drawHUD()
}

// maybeDrawHUD redraws the HUD if enough time has passed since the last draw.
func (p *hudPresenter) maybeDrawHUD() {
	if time.Since(p.lastHUDDraw) < hudMinInterval {
		return
	}
	p.drawHUD()
}

func (p *hudPresenter) drawHUD() {
	snap := p.stats.Snapshot()
	p.clearHUD()

	var pct float64
	if snap.BytesTotal > 0 {
		pct = float64(snap.BytesCopied) / float64(snap.BytesTotal)
	}

	// Line 1: task state + throughput sparkline + speed + byte totals.
	spark := Sparkline(p.stats.SparklineData(sparklineWidth), sparklineWidth)
	fmt.Fprintf(p.w, "%s%-10s%s %s   %s   %s / %s\n",
		ansiDim, p.state, ansiReset, spark,
		FormatRate(p.stats.RollingSpeed(10)),
		FormatBytes(snap.BytesCopied), FormatBytes(snap.BytesTotal))

	// Line 2: progress bar + files + eta.
	fmt.Fprintf(p.w, " %3.0f%%  %s   %s / %s files   eta %s\n",
		pct*100, ProgressBar(pct, progressBarWidth),
		FormatCount(snap.FilesCopied), FormatCount(snap.FilesTotal),
		FormatETA(p.stats.ETA()))

	p.hudDrawn = true
	p.lastHUDDraw = time.Now()
}

func (p *hudPresenter) clearHUD() {
	if !p.hudDrawn {
		return
	}
	// Move cursor up and clear to end of screen.
	fmt.Fprintf(p.w, "\033[%dA\033[J", hudLines)
	p.hudDrawn = false
}

// styledPath dims the directory part of a relative path so the file name
// stands out.
func styledPath(rel string) string {
	dir, base := path.Split(rel)
	if dir == "" {
		return base
	}
	return fmt.Sprintf("%s%s%s%s", ansiDim, dir, ansiReset, base)
}
