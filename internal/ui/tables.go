package ui

import (
	"fmt"
	"io"

	"github.com/gosuri/uitable"

	"github.com/bamsammich/banana/internal/engine"
	"github.com/bamsammich/banana/internal/task"
)

const maxColWidth = 60

// WriteTasks prints the task list. last maps task names to their most
// recent run, if any.
func WriteTasks(w io.Writer, tasks []task.Task, last map[string]engine.BackupResult) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "no tasks defined")
		return
	}
	table := uitable.New()
	table.MaxColWidth = maxColWidth
	table.AddRow("NAME", "SOURCE", "DESTINATION", "SCHEDULE", "LAST RUN", "STATUS")
	for _, t := range tasks {
		when, status := "never", "-"
		if r, ok := last[t.Name]; ok {
			when, status = FormatWhen(r.StartedAt), string(r.Status)
		}
		table.AddRow(t.Name, t.Source, t.Destination, t.Schedule.String(), when, status)
	}
	fmt.Fprintln(w, table)
}

// WriteHistory prints runs, newest first as given.
func WriteHistory(w io.Writer, runs []engine.BackupResult) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	table := uitable.New()
	table.MaxColWidth = maxColWidth
	for _, col := range []int{4, 5, 6, 7, 9} {
		table.RightAlign(col)
	}
	table.AddRow("ID", "STARTED", "TASK", "STATUS", "ADDED", "MODIFIED", "COPIED", "SIZE", "DURATION", "ERRORS")
	for _, r := range runs {
		table.AddRow(
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Task,
			string(r.Status),
			FormatCount(r.FilesAdded),
			FormatCount(r.FilesModified),
			FormatCount(r.FilesCopied),
			FormatBytes(r.BytesCopied),
			FormatDuration(r.Duration),
			failureCount(r),
		)
	}
	fmt.Fprintln(w, table)
}

// WriteFailureLog prints each failed run followed by its file failures.
func WriteFailureLog(w io.Writer, runs []engine.BackupResult) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no errors recorded")
		return
	}
	for i, r := range runs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Task, r.Status, shortID(r.ID))
		if r.Error != "" {
			fmt.Fprintf(w, "  %s\n", r.Error)
		}
		if len(r.Failures) == 0 {
			continue
		}
		table := uitable.New()
		table.MaxColWidth = maxColWidth
		table.Wrap = true
		for _, f := range r.Failures {
			table.AddRow(" ", f.Path, string(f.Kind), f.Message)
		}
		fmt.Fprintln(w, table)
	}
}

// WriteRun prints the details of one run followed by its file failures.
func WriteRun(w io.Writer, r engine.BackupResult) {
	table := uitable.New()
	table.MaxColWidth = maxColWidth * 2
	table.AddRow("ID:", r.ID)
	table.AddRow("Task:", r.Task)
	table.AddRow("Source:", r.Source)
	table.AddRow("Destination:", r.Destination)
	table.AddRow("Started:", r.StartedAt.Local().Format("2006-01-02 15:04:05"))
	table.AddRow("Duration:", FormatDuration(r.Duration))
	table.AddRow("Status:", string(r.Status))
	table.AddRow("Files:", fmt.Sprintf("%s added, %s modified, %s deleted, %s copied",
		FormatCount(r.FilesAdded), FormatCount(r.FilesModified),
		FormatCount(r.FilesDeleted), FormatCount(r.FilesCopied)))
	table.AddRow("Copied:", FormatBytes(r.BytesCopied))
	if r.Error != "" {
		table.AddRow("Error:", r.Error)
	}
	fmt.Fprintln(w, table)

	if len(r.Failures) == 0 {
		return
	}
	fmt.Fprintln(w)
	failures := uitable.New()
	failures.MaxColWidth = maxColWidth
	failures.Wrap = true
	failures.AddRow("PATH", "KIND", "MESSAGE")
	for _, f := range r.Failures {
		failures.AddRow(f.Path, string(f.Kind), f.Message)
	}
	fmt.Fprintln(w, failures)
}

// WritePreview prints what the next run of a task would do. With verbose
// set, every pending path is listed.
func WritePreview(w io.Writer, p engine.Preview, verbose bool) {
	cs := p.Changes
	fmt.Fprintf(w, "%s: %s added, %s modified, %s deleted, %s unchanged, %s to copy\n",
		p.Task,
		FormatCount(int64(len(cs.Added))),
		FormatCount(int64(len(cs.Modified))),
		FormatCount(int64(len(cs.Deleted))),
		FormatCount(int64(len(cs.Unchanged))),
		FormatBytes(p.Bytes))
	if len(p.ScanErrors) > 0 {
		fmt.Fprintf(w, "%d paths could not be read\n", len(p.ScanErrors))
	}
	if !verbose || cs.Empty() {
		return
	}

	table := uitable.New()
	table.MaxColWidth = maxColWidth * 2
	table.RightAlign(2)
	for _, r := range cs.Added {
		table.AddRow("+", r.RelPath, FormatBytes(r.Size))
	}
	for _, r := range cs.Modified {
		table.AddRow("~", r.RelPath, FormatBytes(r.Size))
	}
	for _, path := range cs.Deleted {
		table.AddRow("-", path, "")
	}
	fmt.Fprintln(w, table)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func failureCount(r engine.BackupResult) string {
	if r.Error != "" && len(r.Failures) == 0 {
		return "1"
	}
	return fmt.Sprint(len(r.Failures))
}
