package updater

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		stored   map[string]int64
		current  map[string]int64
		added    []string
		modified []string
		deleted  []string
	}{
		{
			name:    "nil stored",
			current: map[string]int64{"b.c": 1, "a.c": 1},
			added:   []string{"a.c", "b.c"},
		},
		{
			name:    "nil current",
			stored:  map[string]int64{"a.c": 1},
			deleted: []string{"a.c"},
		},
		{
			name:    "no changes",
			stored:  map[string]int64{"a.c": 1, "b.c": 2},
			current: map[string]int64{"a.c": 1, "b.c": 2},
		},
		{
			name:     "mixed",
			stored:   map[string]int64{"keep.c": 1, "touch.c": 1, "gone.c": 1, "gone2.c": 1},
			current:  map[string]int64{"keep.c": 1, "touch.c": 2, "new.c": 5},
			added:    []string{"new.c"},
			modified: []string{"touch.c"},
			deleted:  []string{"gone.c", "gone2.c"},
		},
		{
			name:     "older mtime is still a change",
			stored:   map[string]int64{"a.c": 10},
			current:  map[string]int64{"a.c": 9},
			modified: []string{"a.c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Diff(tt.stored, tt.current)
			assert.ElementsMatch(t, tt.added, c.Added)
			assert.ElementsMatch(t, tt.modified, c.Modified)
			assert.ElementsMatch(t, tt.deleted, c.Deleted)
			assert.Equal(t, len(tt.added)+len(tt.modified)+len(tt.deleted), c.Total())
			assert.Equal(t, c.Total() == 0, c.IsEmpty())
		})
	}
}

func TestDiff_Sorted(t *testing.T) {
	c := Diff(nil, map[string]int64{"z.c": 1, "a.c": 1, "m/x.c": 1})
	assert.Equal(t, []string{"a.c", "m/x.c", "z.c"}, c.Added)
}

func TestChangesAllChanged(t *testing.T) {
	c := &Changes{
		Added:    []string{"b.c", "d.c"},
		Modified: []string{"a.c", "c.c"},
		Deleted:  []string{"e.c"},
	}
	assert.Equal(t, []string{"a.c", "b.c", "c.c", "d.c"}, c.AllChanged())
}
