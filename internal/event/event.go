package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	StateChanged Type = iota + 1
	ScanStarted
	ScanComplete
	DiffComplete
	FileStarted
	FileCompleted
	FileFailed
	FileSkipped
	DeleteFile
	RunCompleted
)

var typeNames = [...]string{
	StateChanged:  "StateChanged",
	ScanStarted:   "ScanStarted",
	ScanComplete:  "ScanComplete",
	DiffComplete:  "DiffComplete",
	FileStarted:   "FileStarted",
	FileCompleted: "FileCompleted",
	FileFailed:    "FileFailed",
	FileSkipped:   "FileSkipped",
	DeleteFile:    "DeleteFile",
	RunCompleted:  "RunCompleted",
}

func (t Type) String() string {
	if int(t) < len(typeNames) && typeNames[t] != "" {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single progress event from a backup run.
type Event struct {
	Type      Type
	Timestamp time.Time
	Task      string
	State     string // StateChanged only
	Path      string // relative path
	Size      int64  // file size
	Done      int64  // files finished so far (copy phase)
	Total     int64  // files to copy (copy phase) or files scanned (ScanComplete)
	TotalSize int64  // bytes to copy
	Error     error
}

// Status is the terminal status of a run.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusPartial  Status = "partial"
	StatusFailure  Status = "failure"
	StatusCanceled Status = "canceled"
)

// Notification is the short message a tray-style collaborator shows when a
// run finishes.
type Notification struct {
	Task    string
	Status  Status
	Message string
}
