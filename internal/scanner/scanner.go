// Package scanner walks a source tree and turns every eligible file into
// tag occurrences for the index.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"bxr/internal/logging"
	"bxr/internal/priority"
	"bxr/internal/source"
	"bxr/internal/store"
	"bxr/internal/tokenizer"
)

// ErrInvalidPath is returned when the scan root is missing or not a directory.
var ErrInvalidPath = errors.New("invalid scan root")

// DefaultExtensions is the built-in allow-list of indexed file extensions.
var DefaultExtensions = []string{
	".c", ".cc", ".cpp", ".cxx", ".h", ".hh", ".hpp",
	".idl", ".ipdl", ".java", ".js", ".jsm", ".perl", ".php", ".py",
	".rb", ".rc", ".sh", ".webidl", ".xml", ".html", ".xul",
}

// Options controls a scan.
type Options struct {
	// MinTokenLength defaults to tokenizer.DefaultMinLength.
	MinTokenLength int

	// Extensions replaces DefaultExtensions when non-empty. Matching is
	// exact, dot included.
	Extensions []string

	// Ignore, when set, skips every path it matches.
	Ignore *ignore.GitIgnore

	// Progress is called with each file's path before it is indexed.
	Progress func(path string)

	Logger *slog.Logger
}

func (o Options) minLen() int {
	if o.MinTokenLength < 1 {
		return tokenizer.DefaultMinLength
	}
	return o.MinTokenLength
}

func (o Options) extensions() []string {
	if len(o.Extensions) == 0 {
		return DefaultExtensions
	}
	return o.Extensions
}

// Hidden reports whether any element of the slash path rel starts with a dot.
func Hidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

// Eligible reports whether the file at slash path rel would be indexed,
// judging by its name alone.
func (o Options) Eligible(rel string) bool {
	if Hidden(rel) || !slices.Contains(o.extensions(), path.Ext(rel)) {
		return false
	}
	return o.Ignore == nil || !o.Ignore.MatchesPath(rel)
}

// SkipDir reports whether the directory at slash path rel is pruned from scans.
func (o Options) SkipDir(rel string) bool {
	if Hidden(rel) {
		return true
	}
	return o.Ignore != nil && o.Ignore.MatchesPath(rel+"/")
}

// TagOccurrence is one classified token of a file.
type TagOccurrence struct {
	Tag      string
	Line     int
	Column   int
	Priority int
}

// FileIndex is everything the index stores about one file.
type FileIndex struct {
	// Path is slash-separated and relative to the scan root.
	Path        string
	Basename    string
	MTime       int64
	Occurrences []TagOccurrence
}

// Result summarizes a scan.
type Result struct {
	Files       int // files written to the index
	Empty       int // eligible files without a single token
	Skipped     int // unreadable or binary files
	Occurrences int
}

// CheckRoot verifies that root exists and is a directory.
func CheckRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, root)
	}
	return nil
}

// Walk returns path → mtime (unix seconds) for every eligible file under
// root. Hidden entries and symlinks are skipped.
func Walk(root string, opts Options) (map[string]int64, error) {
	if err := CheckRoot(root); err != nil {
		return nil, err
	}
	logger := logging.Or(opts.Logger)
	files := make(map[string]int64)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			logger.Debug("skipping unreadable entry", "path", p, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if opts.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !opts.Eligible(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Debug("skipping file", "path", rel, "error", err)
			return nil
		}
		files[rel] = info.ModTime().Unix()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

// IndexFile tokenizes and classifies every line of root/rel.
func IndexFile(root, rel string, opts Options) (*FileIndex, error) {
	full := filepath.Join(root, filepath.FromSlash(rel))

	info, err := os.Stat(full)
	if err != nil {
		return nil, err
	}
	lines, err := source.ReadLines(full)
	if err != nil {
		return nil, err
	}

	basename := path.Base(rel)
	family := priority.FamilyOf(path.Ext(rel))
	minLen := opts.minLen()

	fi := &FileIndex{
		Path:     rel,
		Basename: basename,
		MTime:    info.ModTime().Unix(),
	}
	for i, line := range lines {
		for _, tok := range tokenizer.Tokenize(line, minLen) {
			fi.Occurrences = append(fi.Occurrences, TagOccurrence{
				Tag:      tok.Text,
				Line:     i + 1,
				Column:   tok.Column,
				Priority: priority.ClassifyFamily(family, tok.Text, line, basename),
			})
		}
	}
	return fi, nil
}

// Store writes fi through w. Files without occurrences are not stored.
func Store(ctx context.Context, w *store.Writer, fi *FileIndex) error {
	if len(fi.Occurrences) == 0 {
		return nil
	}

	fileID, err := w.InsertFile(ctx, fi.Path, fi.Basename, fi.MTime)
	if err != nil {
		return err
	}
	for _, o := range fi.Occurrences {
		tagID, err := w.FindOrCreateTag(ctx, o.Tag)
		if err != nil {
			return err
		}
		if err := w.InsertOccurrence(ctx, store.Occurrence{
			TagID:    tagID,
			FileID:   fileID,
			Column:   o.Column,
			Line:     o.Line,
			Priority: o.Priority,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Scan indexes every eligible file under root through w. Unreadable and
// binary files are skipped; store failures abort the scan.
func Scan(ctx context.Context, root string, w *store.Writer, opts Options) (Result, error) {
	var res Result

	files, err := Walk(root, opts)
	if err != nil {
		return res, err
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := IndexPath(ctx, root, p, w, opts)
		if err != nil {
			return res, err
		}
		res.Add(n)
	}

	logging.Or(opts.Logger).Debug("scan complete",
		"root", root,
		"files", res.Files,
		"empty", res.Empty,
		"skipped", res.Skipped,
		"occurrences", res.Occurrences)
	return res, nil
}

// IndexPath indexes and stores a single file, reporting what happened in a
// one-file Result. Only store errors are returned.
func IndexPath(ctx context.Context, root, rel string, w *store.Writer, opts Options) (Result, error) {
	var res Result
	if opts.Progress != nil {
		opts.Progress(rel)
	}

	fi, err := IndexFile(root, rel, opts)
	if err != nil {
		logging.Or(opts.Logger).Debug("skipping file", "path", rel, "error", err)
		res.Skipped++
		return res, nil
	}
	if len(fi.Occurrences) == 0 {
		res.Empty++
		return res, nil
	}
	if err := Store(ctx, w, fi); err != nil {
		return res, fmt.Errorf("storing %s: %w", rel, err)
	}
	res.Files++
	res.Occurrences += len(fi.Occurrences)
	return res, nil
}

// Add accumulates o into r.
func (r *Result) Add(o Result) {
	r.Files += o.Files
	r.Empty += o.Empty
	r.Skipped += o.Skipped
	r.Occurrences += o.Occurrences
}
