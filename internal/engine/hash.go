package engine

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// hashFile returns the BLAKE3 digest of the file at path.
func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := blake3.New()
	buf := make([]byte, 32*1024)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}
	return h.Sum(nil), nil
}

// verifyCopy compares source and destination content hashes.
func verifyCopy(src, dst string) error {
	want, err := hashFile(src)
	if err != nil {
		return fmt.Errorf("hash source: %w", err)
	}
	got, err := hashFile(dst)
	if err != nil {
		return fmt.Errorf("hash destination: %w", err)
	}
	if !bytes.Equal(want, got) {
		return fmt.Errorf("%s: %w", dst, errChecksumMismatch)
	}
	return nil
}
