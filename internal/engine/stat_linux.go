//go:build linux

package engine

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func accessTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Atim.Sec, st.Atim.Nsec)
	}
	return info.ModTime()
}

// setTimes applies atime and mtime to an open file, falling back to the
// path when AT_EMPTY_PATH is unsupported.
func setTimes(f *os.File, atime, mtime time.Time) error {
	times := []unix.Timespec{
		unix.NsecToTimespec(atime.UnixNano()),
		unix.NsecToTimespec(mtime.UnixNano()),
	}
	if err := unix.UtimesNanoAt(int(f.Fd()), "", times, unix.AT_EMPTY_PATH); err != nil {
		if err2 := unix.UtimesNanoAt(unix.AT_FDCWD, f.Name(), times, 0); err2 != nil {
			return fmt.Errorf("utimensat %s: %w", f.Name(), err)
		}
	}
	return nil
}
