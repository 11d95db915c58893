package engine

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/bamsammich/banana/internal/atomicfile"
)

const manifestVersion = 1

// ManifestEntry is the recorded state of one file as of its last backup.
type ManifestEntry struct {
	BackedUpAt time.Time `json:"backed_up_at"`
	Size       int64     `json:"size"`
	MtimeNano  int64     `json:"mtime_ns"`
}

// Manifest is the snapshot of a task's source tree as of its last
// completed run, keyed by relative path.
type Manifest struct {
	WrittenAt time.Time                `json:"written_at"`
	Entries   map[string]ManifestEntry `json:"entries"`
	Task      string                   `json:"task"`
	Version   int                      `json:"version"`

	// Source and Destination are the resolved roots the entries were
	// backed up between.
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// NewManifest returns an empty manifest for task.
func NewManifest(task string) *Manifest {
	return &Manifest{
		Version: manifestVersion,
		Task:    task,
		Entries: make(map[string]ManifestEntry),
	}
}

// Lookup returns the entry for relPath. A nil manifest has no entries.
func (m *Manifest) Lookup(relPath string) (ManifestEntry, bool) {
	if m == nil {
		return ManifestEntry{}, false
	}
	e, ok := m.Entries[relPath]
	return e, ok
}

// Targets reports whether m was recorded for the given resolved roots.
// Manifests written without roots match nothing.
func (m *Manifest) Targets(r roots) bool {
	return m != nil && m.Source != "" && m.Source == r.Source && m.Destination == r.Destination
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Entries)
}

// Record stores r as backed up at the given time.
func (m *Manifest) Record(r FileRecord, at time.Time) {
	m.Entries[r.RelPath] = ManifestEntry{
		Size:       r.Size,
		MtimeNano:  r.ModTime.UnixNano(),
		BackedUpAt: at,
	}
}

// ManifestStore persists one manifest file per task under a directory.
// Files are zstd-compressed JSON; the zstd frame checksum catches torn or
// truncated files.
type ManifestStore struct {
	dir string
}

// NewManifestStore returns a store rooted at dir, created on first write.
func NewManifestStore(dir string) *ManifestStore {
	return &ManifestStore{dir: dir}
}

// Path returns the manifest file path for task.
func (s *ManifestStore) Path(task string) string {
	return filepath.Join(s.dir, manifestID(task)+".manifest")
}

// Read returns the last committed manifest for task, or an empty manifest
// if the task has never completed a run. A damaged file is an error.
func (s *ManifestStore) Read(task string) (*Manifest, error) {
	path := s.Path(task)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewManifest(task), nil
		}
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	defer dec.Close()

	// Read to EOF so the frame checksum is verified.
	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("manifest %s is damaged: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("manifest %s: unsupported version %d", path, m.Version)
	}
	if m.Task != task {
		return nil, fmt.Errorf("manifest %s belongs to task %q, not %q", path, m.Task, task)
	}
	if m.Entries == nil {
		m.Entries = make(map[string]ManifestEntry)
	}
	return &m, nil
}

// Write atomically replaces the task's manifest. If Write fails or the
// process dies part-way, the previous manifest stays intact.
func (s *ManifestStore) Write(m *Manifest) error {
	path := s.Path(m.Task)
	atomicfile.Sweep(path)

	m.Version = manifestVersion
	m.WrittenAt = time.Now().UTC()

	err := atomicfile.Write(path, 0o600, func(w io.Writer) error {
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		if err := json.NewEncoder(enc).Encode(m); err != nil {
			enc.Close()
			return fmt.Errorf("encode manifest: %w", err)
		}
		return enc.Close()
	})
	if err != nil {
		return fmt.Errorf("write manifest for %q: %w", m.Task, err)
	}
	return nil
}

// Remove deletes the task's manifest so its next run copies everything.
func (s *ManifestStore) Remove(task string) error {
	err := os.Remove(s.Path(task))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove manifest: %w", err)
	}
	return nil
}

// manifestID derives a stable file name from a task name.
func manifestID(task string) string {
	h := blake3.New()
	_, _ = h.Write([]byte(task))
	digest := h.Sum(nil)
	return hex.EncodeToString(digest[:8])
}
