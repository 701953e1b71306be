package updater

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bxr/internal/db"
	"bxr/internal/scanner"
	"bxr/internal/store"
)

var baseTime = time.Unix(1700000000, 0)

// writeFile writes content and pins the mtime to baseTime+offset seconds,
// since change detection works at one-second resolution.
func writeFile(t *testing.T, root, rel, content string, offset int) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	mt := baseTime.Add(time.Duration(offset) * time.Second)
	require.NoError(t, os.Chtimes(full, mt, mt))
}

func sampleTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "widget/nsWidget.h", "class nsWidget {\n  void Paint();\n};\n", 0)
	writeFile(t, root, "widget/nsWidget.cpp", "void nsWidget::Paint() {\n  DoPaint(mContext);\n}\n", 0)
	writeFile(t, root, "dom/Document.js", "Document.prototype.render = function render() {};\n", 0)
	writeFile(t, root, "dom/test_document.py", "def test_render_document():\n    pass\n", 0)
	return root
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), db.DefaultConfig(filepath.Join(t.TempDir(), ".bxr.db")))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func snapshot(t *testing.T, st *store.Store) []store.Row {
	t.Helper()
	rows, err := st.Occurrences(context.Background())
	require.NoError(t, err)
	return rows
}

func TestCreate(t *testing.T) {
	root := sampleTree(t)
	st := openStore(t)
	ctx := context.Background()

	res, err := Create(ctx, root, st, Options{})
	require.NoError(t, err)
	assert.Equal(t, ChangeFull, res.Type)
	assert.Nil(t, res.Changes)
	assert.Equal(t, 4, res.Scan.Files)

	rows, err := st.QueryByTag(ctx, "nsWidget")
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, "widget/nsWidget.h", rows[0].Path, "class declaration ranks first")
}

func TestCreate_Idempotent(t *testing.T) {
	root := sampleTree(t)
	st := openStore(t)
	ctx := context.Background()

	_, err := Create(ctx, root, st, Options{})
	require.NoError(t, err)
	first := snapshot(t, st)
	firstTags, err := st.Tags(ctx)
	require.NoError(t, err)

	_, err = Create(ctx, root, st, Options{})
	require.NoError(t, err)
	second := snapshot(t, st)
	secondTags, err := st.Tags(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstTags, secondTags)
}

func TestCreate_InvalidRootKeepsIndex(t *testing.T) {
	root := sampleTree(t)
	st := openStore(t)
	ctx := context.Background()

	_, err := Create(ctx, root, st, Options{})
	require.NoError(t, err)
	before := snapshot(t, st)

	_, err = Create(ctx, filepath.Join(root, "missing"), st, Options{})
	require.ErrorIs(t, err, scanner.ErrInvalidPath)
	assert.Equal(t, before, snapshot(t, st))
}

func TestCreate_InterruptedKeepsIndex(t *testing.T) {
	root := sampleTree(t)
	st := openStore(t)

	_, err := Create(context.Background(), root, st, Options{})
	require.NoError(t, err)
	before := snapshot(t, st)

	writeFile(t, root, "dom/extra.js", "function extraHandler() {}\n", 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	opts := Options{Scan: scanner.Options{Progress: func(path string) {
		if path == "dom/extra.js" {
			cancel()
		}
	}}}

	_, err = Create(ctx, root, st, opts)
	require.Error(t, err)
	assert.Equal(t, before, snapshot(t, st))
}

func TestUpdate_NoIndex(t *testing.T) {
	root := sampleTree(t)
	st := openStore(t)

	_, err := Update(context.Background(), root, st, Options{})
	assert.ErrorIs(t, err, store.ErrNotInitialized)
}

func TestUpdate_NoChanges(t *testing.T) {
	root := sampleTree(t)
	st := openStore(t)
	ctx := context.Background()

	_, err := Create(ctx, root, st, Options{})
	require.NoError(t, err)

	res, err := Update(ctx, root, st, Options{})
	require.NoError(t, err)
	assert.Equal(t, ChangeNone, res.Type)
	assert.True(t, res.Changes.IsEmpty())
}

func TestUpdate_IncrementalEquivalence(t *testing.T) {
	root := sampleTree(t)
	st := openStore(t)
	ctx := context.Background()

	_, err := Create(ctx, root, st, Options{})
	require.NoError(t, err)

	writeFile(t, root, "widget/nsWidget.cpp",
		"void nsWidget::Paint() {\n  DoPaint(mContext);\n}\n\nvoid nsWidget::Invalidate() {\n}\n", 10)

	res, err := Update(ctx, root, st, Options{})
	require.NoError(t, err)
	assert.Equal(t, ChangeIncremental, res.Type)
	assert.Equal(t, []string{"widget/nsWidget.cpp"}, res.Changes.Modified)
	assert.Empty(t, res.Changes.Added)
	assert.Empty(t, res.Changes.Deleted)

	fresh := openStore(t)
	_, err = Create(ctx, root, fresh, Options{})
	require.NoError(t, err)

	assert.Equal(t, snapshot(t, fresh), snapshot(t, st))

	rows, err := st.QueryByTag(ctx, "Invalidate")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0].Line)
}

func TestUpdate_AddAndDelete(t *testing.T) {
	root := sampleTree(t)
	st := openStore(t)
	ctx := context.Background()

	_, err := Create(ctx, root, st, Options{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "dom/Document.js")))
	writeFile(t, root, "gfx/gfxContext.cpp", "gfxContext::gfxContext() {}\n", 3)

	res, err := Update(ctx, root, st, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"gfx/gfxContext.cpp"}, res.Changes.Added)
	assert.Equal(t, []string{"dom/Document.js"}, res.Changes.Deleted)

	times, err := st.FileTimes(ctx)
	require.NoError(t, err)
	assert.NotContains(t, times, "dom/Document.js")
	assert.Equal(t, baseTime.Unix()+3, times["gfx/gfxContext.cpp"])

	fresh := openStore(t)
	_, err = Create(ctx, root, fresh, Options{})
	require.NoError(t, err)
	assert.Equal(t, snapshot(t, fresh), snapshot(t, st))

	// Tags of the removed file stay behind until pruned.
	tags, err := st.Tags(ctx)
	require.NoError(t, err)
	assert.Contains(t, tags, "prototype")

	res, err = Update(ctx, root, st, Options{Prune: true})
	require.NoError(t, err)
	assert.Equal(t, ChangeNone, res.Type)
	assert.Positive(t, res.Pruned)

	tags, err = st.Tags(ctx)
	require.NoError(t, err)
	assert.NotContains(t, tags, "prototype")
}

func TestUpdate_DeleteReindexRoundTrip(t *testing.T) {
	root := sampleTree(t)
	st := openStore(t)
	ctx := context.Background()

	_, err := Create(ctx, root, st, Options{})
	require.NoError(t, err)
	original := snapshot(t, st)

	path := filepath.Join(root, "widget", "nsWidget.h")
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	_, err = Update(ctx, root, st, Options{})
	require.NoError(t, err)
	assert.NotEqual(t, original, snapshot(t, st))

	writeFile(t, root, "widget/nsWidget.h", string(content), 20)
	_, err = Update(ctx, root, st, Options{})
	require.NoError(t, err)

	assert.Equal(t, original, snapshot(t, st))
}

func TestUpdate_InvalidRoot(t *testing.T) {
	st := openStore(t)
	_, err := Update(context.Background(), filepath.Join(t.TempDir(), "missing"), st, Options{})
	assert.ErrorIs(t, err, scanner.ErrInvalidPath)
}
