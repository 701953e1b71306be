package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bxr/internal/db"
)

// Writer holds the single write transaction of a scan or update.
// Nothing it does is visible to readers until Commit.
type Writer struct {
	tx     db.Tx
	schema *db.SchemaBuilder

	tags  map[string]int64
	stmts map[string]db.Stmt
	done  bool
}

// Begin opens a write transaction.
func (s *Store) Begin(ctx context.Context) (*Writer, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Writer{
		tx:     tx,
		schema: s.schema.With(tx),
		tags:   make(map[string]int64),
		stmts:  make(map[string]db.Stmt),
	}, nil
}

// CreateSchema drops and recreates every relation. The previous index stays
// visible to readers until Commit.
func (w *Writer) CreateSchema(ctx context.Context) error {
	w.closeStmts()
	w.tags = make(map[string]int64)

	for _, table := range []string{tableOccurrences, tableTags, tableFiles} {
		if err := w.schema.DropTable(ctx, table); err != nil {
			return fmt.Errorf("dropping %s: %w", table, err)
		}
	}

	tables := []struct {
		name    string
		columns []db.ColumnDef
	}{
		{tableFiles, []db.ColumnDef{
			{Name: "id", Type: db.ColTypeAutoIncrement},
			{Name: "path", Type: db.ColTypeText},
			{Name: "filename", Type: db.ColTypeText},
			{Name: "mtime", Type: db.ColTypeInteger},
		}},
		{tableTags, []db.ColumnDef{
			{Name: "id", Type: db.ColTypeAutoIncrement},
			{Name: "tag", Type: db.ColTypeText},
		}},
		{tableOccurrences, []db.ColumnDef{
			{Name: "tag_id", Type: db.ColTypeInteger, References: "tags(id)"},
			{Name: "file_id", Type: db.ColTypeInteger, References: "files(id)"},
			{Name: "col", Type: db.ColTypeInteger},
			{Name: "line", Type: db.ColTypeInteger},
			{Name: "priority", Type: db.ColTypeInteger},
		}},
	}
	for _, t := range tables {
		if err := w.schema.CreateTable(ctx, t.name, t.columns); err != nil {
			return fmt.Errorf("creating %s: %w", t.name, err)
		}
	}

	indexes := []struct {
		table, name string
		columns     []string
		unique      bool
	}{
		{tableFiles, "idx_files_path", []string{"path"}, true},
		{tableFiles, "idx_files_filename", []string{"filename"}, false},
		{tableTags, "idx_tags_tag", []string{"tag"}, true},
		{tableOccurrences, "idx_occurrences_tag", []string{"tag_id"}, false},
		{tableOccurrences, "idx_occurrences_file", []string{"file_id"}, false},
		{tableOccurrences, "idx_occurrences_priority", []string{"priority"}, false},
	}
	for _, idx := range indexes {
		if err := w.schema.CreateIndex(ctx, idx.table, idx.name, idx.columns, idx.unique); err != nil {
			return fmt.Errorf("creating index %s: %w", idx.name, err)
		}
	}
	return nil
}

// Initialized reports whether the relations exist as seen by this transaction.
func (w *Writer) Initialized(ctx context.Context) (bool, error) {
	for _, table := range []string{tableFiles, tableTags, tableOccurrences} {
		ok, err := w.schema.TableExists(ctx, table)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// FileTimes returns stored path → mtime as seen by this transaction.
func (w *Writer) FileTimes(ctx context.Context) (map[string]int64, error) {
	return fileTimes(ctx, w.schema)
}

// InsertFile adds a file row and returns its id.
func (w *Writer) InsertFile(ctx context.Context, path, basename string, mtime int64) (int64, error) {
	id, err := w.lookupID(ctx, tableFiles, "path", path)
	if err != nil {
		return 0, fmt.Errorf("looking up file %s: %w", path, err)
	}
	if id != 0 {
		return 0, fmt.Errorf("%s: %w", path, ErrFileExists)
	}

	stmt, err := w.prepare(ctx, w.schema.Dialect().InsertReturningSQL(tableFiles, []string{"path", "filename", "mtime"}, "id"))
	if err != nil {
		return 0, err
	}
	if err := stmt.QueryRowContext(ctx, path, basename, mtime).Scan(&id); err != nil {
		return 0, fmt.Errorf("inserting file %s: %w", path, err)
	}
	return id, nil
}

// FindOrCreateTag returns the id of tag, inserting it on first use.
func (w *Writer) FindOrCreateTag(ctx context.Context, tag string) (int64, error) {
	if id, ok := w.tags[tag]; ok {
		return id, nil
	}

	id, err := w.lookupID(ctx, tableTags, "tag", tag)
	if err != nil {
		return 0, fmt.Errorf("looking up tag %q: %w", tag, err)
	}
	if id == 0 {
		stmt, err := w.prepare(ctx, w.schema.Dialect().InsertReturningSQL(tableTags, []string{"tag"}, "id"))
		if err != nil {
			return 0, err
		}
		if err := stmt.QueryRowContext(ctx, tag).Scan(&id); err != nil {
			return 0, fmt.Errorf("inserting tag %q: %w", tag, err)
		}
	}

	w.tags[tag] = id
	return id, nil
}

// InsertOccurrence records one occurrence.
func (w *Writer) InsertOccurrence(ctx context.Context, o Occurrence) error {
	stmt, err := w.prepare(ctx, w.schema.SubstitutePlaceholders(
		"INSERT INTO occurrences (tag_id, file_id, col, line, priority) VALUES (?, ?, ?, ?, ?)"))
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, o.TagID, o.FileID, o.Column, o.Line, o.Priority); err != nil {
		return fmt.Errorf("inserting occurrence: %w", err)
	}
	return nil
}

// DeleteFile removes a file and its occurrences. Tags are left in place.
// Deleting a path that is not indexed is a no-op.
func (w *Writer) DeleteFile(ctx context.Context, path string) error {
	id, err := w.lookupID(ctx, tableFiles, "path", path)
	if err != nil {
		return fmt.Errorf("looking up file %s: %w", path, err)
	}
	if id == 0 {
		return nil
	}

	if _, err := w.tx.ExecContext(ctx,
		w.schema.SubstitutePlaceholders("DELETE FROM occurrences WHERE file_id = ?"), id); err != nil {
		return fmt.Errorf("deleting occurrences of %s: %w", path, err)
	}
	if _, err := w.tx.ExecContext(ctx,
		w.schema.SubstitutePlaceholders("DELETE FROM files WHERE id = ?"), id); err != nil {
		return fmt.Errorf("deleting file %s: %w", path, err)
	}
	return nil
}

// PruneOrphanTags deletes tags without occurrences and returns how many went.
func (w *Writer) PruneOrphanTags(ctx context.Context) (int64, error) {
	res, err := w.tx.ExecContext(ctx, "DELETE FROM tags WHERE id NOT IN (SELECT tag_id FROM occurrences)")
	if err != nil {
		return 0, fmt.Errorf("pruning tags: %w", err)
	}
	w.tags = make(map[string]int64)
	return res.RowsAffected()
}

// Commit makes every change visible.
func (w *Writer) Commit() error {
	if w.done {
		return sql.ErrTxDone
	}
	w.closeStmts()
	w.done = true
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("committing index: %w", err)
	}
	return nil
}

// Rollback discards every change. Calling it after Commit is a no-op, so it
// can be deferred.
func (w *Writer) Rollback() error {
	if w.done {
		return nil
	}
	w.closeStmts()
	w.done = true
	return w.tx.Rollback()
}

func (w *Writer) lookupID(ctx context.Context, table, column, value string) (int64, error) {
	var id int64
	err := w.schema.Query(table).Select("id").Where(column+" = ?", value).ExecRow(ctx).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

func (w *Writer) prepare(ctx context.Context, query string) (db.Stmt, error) {
	if stmt, ok := w.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := w.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	w.stmts[query] = stmt
	return stmt, nil
}

func (w *Writer) closeStmts() {
	for q, stmt := range w.stmts {
		stmt.Close()
		delete(w.stmts, q)
	}
}
