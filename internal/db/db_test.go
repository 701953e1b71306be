package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unsupported driver", Config{Driver: "mysql"}},
		{"empty sqlite path", Config{Driver: DriverModernc}},
		{"empty postgres dsn", Config{Driver: DriverPostgres}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if db, err := Open(tt.cfg); err == nil {
				db.Close()
				t.Fatal("Open() succeeded, want error")
			}
		})
	}
}

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "bxr.db")
	db, err := Open(DefaultConfig(path))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("parent dir not created: %v", err)
	}
}

// The store writes a whole update in one transaction while queries run
// against the same file from other processes.
func TestOpen_WALReaderSkipsOpenTransaction(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bxr.db")

	writer, err := Open(DefaultConfig(path))
	if err != nil {
		t.Fatalf("Open(writer) error = %v", err)
	}
	defer writer.Close()

	var mode string
	if err := writer.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}

	schema := NewSchemaBuilder(writer, &SQLiteDialect{})
	if err := schema.CreateTable(ctx, "tags", []ColumnDef{
		{Name: "id", Type: ColTypeAutoIncrement},
		{Name: "tag", Type: ColTypeText},
	}); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}

	reader, err := Open(DefaultConfig(path))
	if err != nil {
		t.Fatalf("Open(reader) error = %v", err)
	}
	defer reader.Close()

	count := func() int {
		t.Helper()
		var n int
		if err := reader.QueryRowContext(ctx, "SELECT COUNT(*) FROM tags").Scan(&n); err != nil {
			t.Fatalf("reader count: %v", err)
		}
		return n
	}

	tx, err := writer.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO tags (tag) VALUES (?)", "nsWidget"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if n := count(); n != 0 {
		t.Errorf("reader sees %d rows of an open transaction, want 0", n)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if n := count(); n != 1 {
		t.Errorf("reader sees %d rows after commit, want 1", n)
	}
}

func TestInsertReturningSQL_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	ctx := context.Background()
	schema := NewSchemaBuilder(db, &SQLiteDialect{})
	if err := schema.CreateTable(ctx, "files", []ColumnDef{
		{Name: "id", Type: ColTypeAutoIncrement},
		{Name: "path", Type: ColTypeText},
		{Name: "mtime", Type: ColTypeInteger},
	}); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	stmt, err := tx.PrepareContext(ctx, schema.Dialect().InsertReturningSQL("files", []string{"path", "mtime"}, "id"))
	if err != nil {
		t.Fatalf("PrepareContext() error = %v", err)
	}

	paths := []string{"widget/nsWidget.cpp", "widget/nsWidget.h", "dom/nsNode.cpp"}
	ids := make(map[string]int64)
	for i, p := range paths {
		var id int64
		if err := stmt.QueryRowContext(ctx, p, int64(1000+i)).Scan(&id); err != nil {
			t.Fatalf("insert %q: %v", p, err)
		}
		if id != int64(i+1) {
			t.Errorf("insert %q returned id %d, want %d", p, id, i+1)
		}
		ids[p] = id
	}
	if err := stmt.Close(); err != nil {
		t.Fatalf("stmt.Close() error = %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	for p, id := range ids {
		var got string
		err := schema.Query("files").Select("path").Where("id = ?", id).ExecRow(ctx).Scan(&got)
		if err != nil {
			t.Fatalf("lookup id %d: %v", id, err)
		}
		if got != p {
			t.Errorf("id %d path = %q, want %q", id, got, p)
		}
	}
}

func openTestDB(t *testing.T) DB {
	t.Helper()
	db, err := OpenModernc(Config{Driver: DriverModernc, Path: ":memory:"})
	if err != nil {
		t.Fatalf("OpenModernc() error = %v", err)
	}
	return db
}
