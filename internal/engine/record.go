package engine

import "time"

// FileRecord is the metadata of one regular file in a source tree.
// RelPath is slash-separated and relative to the tree root.
type FileRecord struct {
	ModTime time.Time
	RelPath string
	Size    int64
}

// ChangeSet classifies the current scan against the previous manifest.
// The four sets are disjoint and each is sorted by path.
type ChangeSet struct {
	Added     []FileRecord
	Modified  []FileRecord
	Unchanged []FileRecord
	Deleted   []string
}

// Empty reports whether nothing was added, modified or deleted.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Pending returns the files that need copying: Added and Modified, merged
// in path order.
func (c ChangeSet) Pending() []FileRecord {
	out := make([]FileRecord, 0, len(c.Added)+len(c.Modified))
	i, j := 0, 0
	for i < len(c.Added) && j < len(c.Modified) {
		if c.Added[i].RelPath < c.Modified[j].RelPath {
			out = append(out, c.Added[i])
			i++
		} else {
			out = append(out, c.Modified[j])
			j++
		}
	}
	out = append(out, c.Added[i:]...)
	return append(out, c.Modified[j:]...)
}

// PendingBytes is the total size of Pending.
func (c ChangeSet) PendingBytes() int64 {
	var n int64
	for _, r := range c.Added {
		n += r.Size
	}
	for _, r := range c.Modified {
		n += r.Size
	}
	return n
}
