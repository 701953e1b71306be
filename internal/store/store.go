// Package store persists the identifier index: files, tags and the
// occurrences linking them. Reads go through Store; every mutation happens
// inside a single Writer transaction so readers never observe a partial scan.
package store

import (
	"context"
	"errors"
	"fmt"

	"bxr/internal/db"
)

var (
	// ErrFileExists is returned by Writer.InsertFile for a path already indexed.
	ErrFileExists = errors.New("file already indexed")

	// ErrNotInitialized is returned when the index relations do not exist yet.
	ErrNotInitialized = errors.New("index not initialized")
)

const (
	tableFiles       = "files"
	tableTags        = "tags"
	tableOccurrences = "occurrences"
)

// Occurrence is one tag appearing in one file.
type Occurrence struct {
	TagID    int64
	FileID   int64
	Column   int
	Line     int
	Priority int
}

// Row is an occurrence joined with its tag text and file path.
type Row struct {
	Tag      string
	Path     string
	Line     int
	Column   int
	Priority int
}

// Stats summarizes index content.
type Stats struct {
	Files       int64
	Tags        int64
	Occurrences int64
	OrphanTags  int64
}

// Store is the read side of the index.
type Store struct {
	db     db.DB
	schema *db.SchemaBuilder
}

// New wraps an open database.
func New(database db.DB, dialect db.Dialect) *Store {
	return &Store{
		db:     database,
		schema: db.NewSchemaBuilder(database, dialect),
	}
}

// Open opens the database described by cfg.
func Open(ctx context.Context, cfg db.Config) (*Store, error) {
	database, err := db.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	s := New(database, cfg.Dialect())
	if err := s.schema.RunInitStatements(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("opening index: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect returns the SQL dialect of the store.
func (s *Store) Dialect() db.Dialect {
	return s.schema.Dialect()
}

// Initialized reports whether all index relations exist.
func (s *Store) Initialized(ctx context.Context) (bool, error) {
	for _, table := range []string{tableFiles, tableTags, tableOccurrences} {
		ok, err := s.schema.TableExists(ctx, table)
		if err != nil {
			return false, fmt.Errorf("checking %s: %w", table, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (s *Store) requireInitialized(ctx context.Context) error {
	ok, err := s.Initialized(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotInitialized
	}
	return nil
}

const occurrenceJoin = "occurrences o JOIN tags t ON o.tag_id = t.id JOIN files f ON o.file_id = f.id"

var rowColumns = []string{"t.tag", "f.path", "o.line", "o.col", "o.priority"}

// QueryByTag returns every occurrence of exactly tag, strongest first.
func (s *Store) QueryByTag(ctx context.Context, tag string) ([]Row, error) {
	if err := s.requireInitialized(ctx); err != nil {
		return nil, err
	}
	rows, err := s.schema.Query(occurrenceJoin).
		Select(rowColumns...).
		Where("t.tag = ?", tag).
		OrderBy("o.priority DESC, f.path, o.line, o.col").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("query by tag: %w", err)
	}
	return scanRows(rows)
}

// QueryByTagLike returns occurrences of every tag containing pattern.
// Matching is case-sensitive and literal.
func (s *Store) QueryByTagLike(ctx context.Context, pattern string) ([]Row, error) {
	if err := s.requireInitialized(ctx); err != nil {
		return nil, err
	}
	rows, err := s.schema.Query(occurrenceJoin).
		Select(rowColumns...).
		Where(s.Dialect().ContainsSQL("t.tag"), pattern).
		OrderBy("f.path, o.line, o.col").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("query by tag pattern: %w", err)
	}
	return scanRows(rows)
}

// QueryFilesByPattern returns the distinct paths of files whose basename
// contains pattern, alphabetically.
func (s *Store) QueryFilesByPattern(ctx context.Context, pattern string) ([]string, error) {
	if err := s.requireInitialized(ctx); err != nil {
		return nil, err
	}
	rows, err := s.schema.Query(tableFiles).
		Distinct().
		Select("path").
		Where(s.Dialect().ContainsSQL("filename"), pattern).
		OrderBy("path").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Occurrences returns every stored occurrence ordered by path, line, column.
func (s *Store) Occurrences(ctx context.Context) ([]Row, error) {
	rows, err := s.schema.Query(occurrenceJoin).
		Select(rowColumns...).
		OrderBy("f.path, o.line, o.col, t.tag").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing occurrences: %w", err)
	}
	return scanRows(rows)
}

// Tags returns every stored tag, orphaned ones included.
func (s *Store) Tags(ctx context.Context) ([]string, error) {
	rows, err := s.schema.Query(tableTags).Select("tag").OrderBy("tag").Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// FileTimes returns stored path → mtime.
func (s *Store) FileTimes(ctx context.Context) (map[string]int64, error) {
	if err := s.requireInitialized(ctx); err != nil {
		return nil, err
	}
	return fileTimes(ctx, s.schema)
}

func fileTimes(ctx context.Context, schema *db.SchemaBuilder) (map[string]int64, error) {
	rows, err := schema.Query(tableFiles).Select("path", "mtime").Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	times := make(map[string]int64)
	for rows.Next() {
		var path string
		var mtime int64
		if err := rows.Scan(&path, &mtime); err != nil {
			return nil, err
		}
		times[path] = mtime
	}
	return times, rows.Err()
}

// Stats counts the index content.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	if err := s.requireInitialized(ctx); err != nil {
		return st, err
	}

	counts := []struct {
		dst   *int64
		table string
		where string
	}{
		{&st.Files, tableFiles, ""},
		{&st.Tags, tableTags, ""},
		{&st.Occurrences, tableOccurrences, ""},
		{&st.OrphanTags, tableTags, "id NOT IN (SELECT tag_id FROM occurrences)"},
	}
	for _, c := range counts {
		q := s.schema.Query(c.table).Select("COUNT(*)")
		if c.where != "" {
			q = q.Where(c.where)
		}
		if err := q.ExecRow(ctx).Scan(c.dst); err != nil {
			return st, fmt.Errorf("counting %s: %w", c.table, err)
		}
	}
	return st, nil
}

func scanRows(rows db.Rows) ([]Row, error) {
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Tag, &r.Path, &r.Line, &r.Column, &r.Priority); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
