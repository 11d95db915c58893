package engine

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"
)

// ErrorKind classifies a failure for the history and log viewers.
type ErrorKind string

const (
	PermissionError ErrorKind = "permission"
	OtherIOError    ErrorKind = "io"
	ConfigErrorKind ErrorKind = "config"
)

var (
	// ErrTaskBusy is returned when a run is requested for a task that
	// already has an active run.
	ErrTaskBusy = errors.New("task is already running")

	// errChecksumMismatch marks a destination file whose content hash does
	// not match the source after copy.
	errChecksumMismatch = errors.New("checksum mismatch after copy")
)

// ConfigError reports an invalid or unusable task definition. It is fatal
// for the run and is raised before any file is touched.
type ConfigError struct {
	Task   string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("invalid task: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid task %q: %s %s", e.Task, e.Field, e.Reason)
}

// FileFailure records a single file that could not be scanned or copied.
type FileFailure struct {
	Path    string    `json:"path"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Classify maps an error to PermissionError or OtherIOError.
func Classify(err error) ErrorKind {
	var cfgErr *ConfigError
	switch {
	case errors.As(err, &cfgErr):
		return ConfigErrorKind
	case errors.Is(err, fs.ErrPermission),
		errors.Is(err, unix.EACCES),
		errors.Is(err, unix.EPERM):
		return PermissionError
	default:
		return OtherIOError
	}
}

// describe returns a short human-readable reason for common I/O errnos, or
// the error text itself.
func describe(err error) string {
	switch {
	case errors.Is(err, unix.ENOSPC), errors.Is(err, unix.EDQUOT):
		return "disk full: " + err.Error()
	case errors.Is(err, unix.ENAMETOOLONG):
		return "path too long: " + err.Error()
	case errors.Is(err, unix.EROFS):
		return "read-only file system: " + err.Error()
	default:
		return err.Error()
	}
}

func newFailure(relPath string, err error) FileFailure {
	return FileFailure{Path: relPath, Kind: Classify(err), Message: describe(err)}
}
