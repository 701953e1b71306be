// Package query answers identifier, free-text and filename queries from a
// stored index.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"

	"bxr/internal/logging"
	"bxr/internal/source"
	"bxr/internal/store"
	"bxr/internal/tokenizer"
)

// DefaultCacheSize is the number of files whose lines are kept.
const DefaultCacheSize = 64

// Config configures an Engine.
type Config struct {
	CacheSize int

	// MinTokenLength must match the length the index was built with.
	MinTokenLength int

	Logger *slog.Logger
}

// Options apply to a single query.
type Options struct {
	// Max caps the number of results; 0 means unlimited.
	Max int
}

// Result is one answer row. Path is relative to the index root.
type Result struct {
	Path     string
	Line     int
	Column   int
	Priority int
	Text     string

	// Stale is set when the file could no longer be read at query time.
	Stale bool
}

// Engine runs queries against a store whose paths are relative to root.
type Engine struct {
	store  *store.Store
	root   string
	minLen int
	lines  *lru.Cache[string, []string]
	logger *slog.Logger
}

// New creates an Engine.
func New(st *store.Store, root string, cfg Config) (*Engine, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []string](size)
	if err != nil {
		return nil, fmt.Errorf("creating line cache: %w", err)
	}
	minLen := cfg.MinTokenLength
	if minLen < 1 {
		minLen = tokenizer.DefaultMinLength
	}
	return &Engine{
		store:  st,
		root:   root,
		minLen: minLen,
		lines:  cache,
		logger: logging.Or(cfg.Logger),
	}, nil
}

// Identifier returns the occurrences of exactly tag, strongest first.
// Occurrences in files that vanished are returned with Stale set.
func (e *Engine) Identifier(ctx context.Context, tag string, opts Options) ([]Result, error) {
	rows, err := e.store.QueryByTag(ctx, tag)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(rows))
	for _, r := range rows {
		res := Result{Path: r.Path, Line: r.Line, Column: r.Column, Priority: r.Priority}
		if text, ok := e.line(r.Path, r.Line); ok {
			res.Text = text
		} else {
			res.Stale = true
		}
		results = append(results, res)
		if opts.Max > 0 && len(results) >= opts.Max {
			break
		}
	}
	return results, nil
}

// Search returns the lines containing text verbatim. The first token of text
// selects candidate occurrences through the tag index; each candidate line is
// then re-read and kept only if it contains text. Results are unique per
// line and ordered by path and line.
func (e *Engine) Search(ctx context.Context, text string, opts Options) ([]Result, error) {
	tok, ok := tokenizer.First(text, e.minLen)
	if !ok {
		return nil, nil
	}

	rows, err := e.store.QueryByTagLike(ctx, tok.Text)
	if err != nil {
		return nil, err
	}

	type key struct {
		path string
		line int
	}
	seen := make(map[key]int)
	var results []Result

	for _, r := range rows {
		k := key{r.Path, r.Line}
		if i, dup := seen[k]; dup {
			if r.Priority > results[i].Priority {
				results[i].Priority = r.Priority
			}
			continue
		}

		line, ok := e.line(r.Path, r.Line)
		if !ok {
			continue
		}
		idx := strings.Index(line, text)
		if idx < 0 {
			continue
		}

		seen[k] = len(results)
		results = append(results, Result{
			Path:     r.Path,
			Line:     r.Line,
			Column:   utf8.RuneCountInString(line[:idx]) + 1,
			Priority: r.Priority,
			Text:     line,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Path != results[j].Path {
			return results[i].Path < results[j].Path
		}
		return results[i].Line < results[j].Line
	})
	if opts.Max > 0 && len(results) > opts.Max {
		results = results[:opts.Max]
	}
	return results, nil
}

// Files returns the paths of indexed files whose basename contains pattern.
func (e *Engine) Files(ctx context.Context, pattern string, opts Options) ([]string, error) {
	paths, err := e.store.QueryFilesByPattern(ctx, pattern)
	if err != nil {
		return nil, err
	}
	if opts.Max > 0 && len(paths) > opts.Max {
		paths = paths[:opts.Max]
	}
	return paths, nil
}

// Purge drops every cached file.
func (e *Engine) Purge() {
	e.lines.Purge()
}

func (e *Engine) line(path string, n int) (string, bool) {
	lines, ok := e.lines.Get(path)
	if !ok {
		var err error
		lines, err = source.ReadLines(filepath.Join(e.root, filepath.FromSlash(path)))
		if err != nil {
			e.logger.Debug("stale reference", "path", path, "error", err)
			return "", false
		}
		e.lines.Add(path, lines)
	}
	return source.Line(lines, n)
}
