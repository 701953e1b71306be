package db

import (
	"fmt"
	"strings"
)

// ColumnType is a portable column type.
type ColumnType int

const (
	// ColTypeAutoIncrement is an auto-incrementing integer primary key.
	ColTypeAutoIncrement ColumnType = iota
	ColTypeInteger
	ColTypeText
)

// ColumnDef describes one column of a table.
type ColumnDef struct {
	Name     string
	Type     ColumnType
	Nullable bool

	// References is an optional foreign key target, e.g. "files(id)".
	References string
}

// Dialect generates the SQL that differs between database engines.
type Dialect interface {
	// Name is the dialect identifier ("sqlite", "postgres").
	Name() string

	// Placeholder returns the n-th (1-based) bind parameter.
	Placeholder(n int) string

	CreateTableSQL(table string, columns []ColumnDef) string
	CreateIndexSQL(table, indexName string, columns []string, unique bool) string
	DropTableSQL(table string) string

	// InsertReturningSQL builds an INSERT that returns the given column.
	InsertReturningSQL(table string, columns []string, returning string) string

	// ContainsSQL is a case-sensitive, literal substring test of column
	// against one "?" parameter (see SchemaBuilder.SubstitutePlaceholders).
	ContainsSQL(column string) string

	// TableExistsSQL counts tables named by one "?" parameter.
	TableExistsSQL() string

	// InitStatements run once after opening a connection.
	InitStatements() []string
}

// SQLiteDialect targets SQLite (modernc.org/sqlite).
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string { return "sqlite" }

func (d *SQLiteDialect) Placeholder(int) string { return "?" }

func (d *SQLiteDialect) CreateTableSQL(table string, columns []ColumnDef) string {
	return createTableSQL(table, columns, func(t ColumnType) string {
		switch t {
		case ColTypeAutoIncrement:
			return "INTEGER PRIMARY KEY AUTOINCREMENT"
		case ColTypeInteger:
			return "INTEGER"
		default:
			return "TEXT"
		}
	})
}

func (d *SQLiteDialect) CreateIndexSQL(table, indexName string, columns []string, unique bool) string {
	return createIndexSQL(table, indexName, columns, unique)
}

func (d *SQLiteDialect) DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
}

func (d *SQLiteDialect) InsertReturningSQL(table string, columns []string, returning string) string {
	return insertReturningSQL(d, table, columns, returning)
}

func (d *SQLiteDialect) ContainsSQL(column string) string {
	return fmt.Sprintf("instr(%s, ?) > 0", column)
}

func (d *SQLiteDialect) TableExistsSQL() string {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
}

func (d *SQLiteDialect) InitStatements() []string {
	return []string{"PRAGMA foreign_keys = ON"}
}

// PostgresDialect targets PostgreSQL (lib/pq).
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (d *PostgresDialect) CreateTableSQL(table string, columns []ColumnDef) string {
	return createTableSQL(table, columns, func(t ColumnType) string {
		switch t {
		case ColTypeAutoIncrement:
			return "BIGSERIAL PRIMARY KEY"
		case ColTypeInteger:
			return "BIGINT"
		default:
			return "TEXT"
		}
	})
}

func (d *PostgresDialect) CreateIndexSQL(table, indexName string, columns []string, unique bool) string {
	return createIndexSQL(table, indexName, columns, unique)
}

func (d *PostgresDialect) DropTableSQL(table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)
}

func (d *PostgresDialect) InsertReturningSQL(table string, columns []string, returning string) string {
	return insertReturningSQL(d, table, columns, returning)
}

func (d *PostgresDialect) ContainsSQL(column string) string {
	return fmt.Sprintf("strpos(%s, ?) > 0", column)
}

func (d *PostgresDialect) TableExistsSQL() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?"
}

func (d *PostgresDialect) InitStatements() []string {
	return nil
}

func createTableSQL(table string, columns []ColumnDef, typeName func(ColumnType) string) string {
	defs := make([]string, 0, len(columns))
	for _, c := range columns {
		def := c.Name + " " + typeName(c.Type)
		if c.Type != ColTypeAutoIncrement && !c.Nullable {
			def += " NOT NULL"
		}
		if c.References != "" {
			def += " REFERENCES " + c.References
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
}

func createIndexSQL(table, indexName string, columns []string, unique bool) string {
	kw := "INDEX"
	if unique {
		kw = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)", kw, indexName, table, strings.Join(columns, ", "))
}

func insertReturningSQL(d Dialect, table string, columns []string, returning string) string {
	ph := make([]string, len(columns))
	for i := range columns {
		ph[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		table, strings.Join(columns, ", "), strings.Join(ph, ", "), returning)
}
