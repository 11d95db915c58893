package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Lock takes the task's run lock in the store directory without waiting.
// The lock is an flock(2) on a file beside the manifest, so it excludes
// runs in other processes that share the store. It returns ErrTaskBusy
// when another run holds it.
func (s *ManifestStore) Lock(task string) (unlock func(), err error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}
	path := filepath.Join(s.dir, manifestID(task)+".lock")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open run lock: %w", err)
	}

	//nolint:gosec // G115: fd values are small non-negative integers
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrTaskBusy
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	return func() {
		//nolint:gosec,errcheck // closing the descriptor drops the lock anyway
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
	}, nil
}
