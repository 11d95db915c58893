package engine

import "sort"

// Diff classifies the current scan against the prior manifest.
//
// A file whose size or modification time differs from its manifest entry is
// Modified, including when only the mtime moved. Content changes that keep
// both size and mtime identical are not detected.
func Diff(records []FileRecord, prior *Manifest) ChangeSet {
	var cs ChangeSet
	seen := make(map[string]struct{}, len(records))

	for _, r := range records {
		seen[r.RelPath] = struct{}{}

		entry, ok := prior.Lookup(r.RelPath)
		switch {
		case !ok:
			cs.Added = append(cs.Added, r)
		case entry.Size != r.Size || entry.MtimeNano != r.ModTime.UnixNano():
			cs.Modified = append(cs.Modified, r)
		default:
			cs.Unchanged = append(cs.Unchanged, r)
		}
	}

	if prior != nil {
		for path := range prior.Entries {
			if _, ok := seen[path]; !ok {
				cs.Deleted = append(cs.Deleted, path)
			}
		}
	}

	byPath := func(s []FileRecord) {
		sort.Slice(s, func(i, j int) bool { return s[i].RelPath < s[j].RelPath })
	}
	byPath(cs.Added)
	byPath(cs.Modified)
	byPath(cs.Unchanged)
	sort.Strings(cs.Deleted)
	return cs
}
