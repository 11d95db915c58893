package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"fs permission", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, PermissionError},
		{"EACCES", &os.PathError{Op: "open", Path: "/x", Err: unix.EACCES}, PermissionError},
		{"EPERM wrapped", fmt.Errorf("chmod: %w", unix.EPERM), PermissionError},
		{"not exist", &os.PathError{Op: "open", Path: "/x", Err: unix.ENOENT}, OtherIOError},
		{"disk full", unix.ENOSPC, OtherIOError},
		{"checksum", errChecksumMismatch, OtherIOError},
		{"config", fmt.Errorf("run: %w", &ConfigError{Field: "name"}), ConfigErrorKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestNewFailureDescribesErrno(t *testing.T) {
	t.Parallel()
	f := newFailure("a.txt", &os.PathError{Op: "write", Path: "/dst/a.txt", Err: unix.ENOSPC})
	assert.Equal(t, "a.txt", f.Path)
	assert.Equal(t, OtherIOError, f.Kind)
	assert.Contains(t, f.Message, "disk full")

	f = newFailure("long", &os.PathError{Op: "open", Path: "/x", Err: unix.ENAMETOOLONG})
	assert.Contains(t, f.Message, "path too long")

	f = newFailure("ro", &os.PathError{Op: "open", Path: "/x", Err: unix.EROFS})
	assert.Contains(t, f.Message, "read-only file system")

	f = newFailure("plain", errors.New("boom"))
	assert.Equal(t, "boom", f.Message)
}
