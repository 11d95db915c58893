package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/bamsammich/banana/internal/task"
)

// Validate checks that t can run: it has a name, and its source and
// destination are existing, distinct directories with the destination
// outside the source. It only reads the filesystem.
func Validate(t task.Task) error {
	_, err := resolveRoots(t)
	return err
}

// roots are a task's source and destination as cleaned absolute paths with
// symlinks resolved.
type roots struct {
	Source      string
	Destination string
}

// resolveRoots validates t and returns its resolved roots.
func resolveRoots(t task.Task) (roots, error) {
	if strings.TrimSpace(t.Name) == "" {
		return roots{}, &ConfigError{Field: "name", Reason: "is required"}
	}
	if err := t.Schedule.Validate(); err != nil {
		return roots{}, &ConfigError{Task: t.Name, Field: "schedule", Reason: err.Error()}
	}

	src, err := checkDir(t.Name, "source", t.Source)
	if err != nil {
		return roots{}, err
	}
	dst, err := checkDir(t.Name, "destination", t.Destination)
	if err != nil {
		return roots{}, err
	}

	if dst == src {
		return roots{}, &ConfigError{Task: t.Name, Field: "destination", Reason: "is the same directory as the source"}
	}
	if rel, err := filepath.Rel(src, dst); err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return roots{}, &ConfigError{Task: t.Name, Field: "destination", Reason: "is inside the source"}
	}
	return roots{Source: src, Destination: dst}, nil
}

// checkDir returns the cleaned absolute form of dir after checking it is a
// reachable directory.
func checkDir(name, field, dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", &ConfigError{Task: name, Field: field, Reason: "is required"}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", &ConfigError{Task: name, Field: field, Reason: err.Error()}
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	info, err := os.Stat(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return "", &ConfigError{Task: name, Field: field, Reason: dir + " does not exist"}
	case err != nil:
		return "", &ConfigError{Task: name, Field: field, Reason: dir + " is unreachable: " + err.Error()}
	case !info.IsDir():
		return "", &ConfigError{Task: name, Field: field, Reason: dir + " is not a directory"}
	}

	f, err := os.Open(abs)
	if err != nil {
		return "", &ConfigError{Task: name, Field: field, Reason: dir + " is unreachable: " + err.Error()}
	}
	f.Close()
	return abs, nil
}

// Retargeted reports whether next backs up between different directories
// than prev. Paths are compared in cleaned absolute form with symlinks
// resolved where they exist.
func Retargeted(prev, next task.Task) bool {
	return canonical(prev.Source) != canonical(next.Source) ||
		canonical(prev.Destination) != canonical(next.Destination)
}

func canonical(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Clean(dir)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
