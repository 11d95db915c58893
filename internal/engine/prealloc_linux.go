//go:build linux

package engine

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocate reserves size bytes for f so large copies fail early on a full
// disk. Filesystems without fallocate are ignored.
//
//nolint:gosec // G115: fd values are small non-negative integers
func preallocate(f *os.File, size int64) {
	if size <= 0 {
		return
	}
	//nolint:errcheck // fallocate is advisory; not supported on all filesystems
	unix.Fallocate(int(f.Fd()), unix.FALLOC_FL_KEEP_SIZE, 0, size)
}
