package updater

import "sort"

// Changes represents the differences between the stored and on-disk trees.
// It categorizes changes into added, modified, and deleted files.
type Changes struct {
	Added    []string // on disk, not in the index
	Modified []string // in both, different mtime
	Deleted  []string // in the index, gone from disk
}

// IsEmpty returns true if there are no changes.
func (c *Changes) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Total returns the total number of changes.
func (c *Changes) Total() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted)
}

// AllChanged returns all files that need indexing (added + modified).
func (c *Changes) AllChanged() []string {
	result := make([]string, 0, len(c.Added)+len(c.Modified))
	result = append(result, c.Added...)
	result = append(result, c.Modified...)
	sort.Strings(result)
	return result
}

// Diff compares stored and current path → mtime maps. A nil map is empty.
// Only modification times are compared.
func Diff(stored, current map[string]int64) *Changes {
	changes := &Changes{
		Added:    make([]string, 0),
		Modified: make([]string, 0),
		Deleted:  make([]string, 0),
	}

	for path, mtime := range current {
		if old, exists := stored[path]; exists {
			if old != mtime {
				changes.Modified = append(changes.Modified, path)
			}
		} else {
			changes.Added = append(changes.Added, path)
		}
	}

	for path := range stored {
		if _, exists := current[path]; !exists {
			changes.Deleted = append(changes.Deleted, path)
		}
	}

	// Sort for deterministic output
	sort.Strings(changes.Added)
	sort.Strings(changes.Modified)
	sort.Strings(changes.Deleted)

	return changes
}
