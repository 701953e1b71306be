// Package db provides a small database abstraction shared by the index store.
// It wraps database/sql behind interfaces so the store can run on the pure-Go
// SQLite driver (modernc.org/sqlite) or on PostgreSQL (lib/pq) with the same code.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// Driver identifies the database/sql driver used to open a database.
type Driver string

const (
	// DriverModernc is the pure-Go SQLite driver.
	DriverModernc Driver = "modernc"
	// DriverPostgres is the lib/pq PostgreSQL driver.
	DriverPostgres Driver = "postgres"
)

// DatabaseType is the user-facing backend name used in configuration.
type DatabaseType string

const (
	DatabaseSQLite   DatabaseType = "sqlite"
	DatabasePostgres DatabaseType = "postgres"
)

// Config describes how to open a database.
type Config struct {
	Driver Driver

	// Path is the SQLite database file, or ":memory:".
	Path string

	// DSN is the PostgreSQL connection string.
	DSN string

	// EnableWAL turns on SQLite write-ahead logging so readers never
	// block on (or observe) an open write transaction.
	EnableWAL bool

	// BusyTimeout is how long SQLite waits on a locked database.
	BusyTimeout time.Duration
}

// DefaultConfig returns a SQLite config for the given path.
func DefaultConfig(path string) Config {
	return Config{
		Driver:      DriverModernc,
		Path:        path,
		EnableWAL:   true,
		BusyTimeout: 5 * time.Second,
	}
}

// Dialect returns the SQL dialect matching the configured driver.
func (c Config) Dialect() Dialect {
	if c.Driver == DriverPostgres {
		return &PostgresDialect{}
	}
	return &SQLiteDialect{}
}

// Result is the outcome of an Exec.
type Result = sql.Result

// Row is a single-row query result.
type Row interface {
	Scan(dest ...any) error
	Err() error
}

// Rows is a multi-row query result.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Err() error
	Close() error
}

// Stmt is a prepared statement.
type Stmt interface {
	ExecContext(ctx context.Context, args ...any) (Result, error)
	QueryRowContext(ctx context.Context, args ...any) Row
	Close() error
}

// Querier is implemented by both DB and Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) Row
	ExecContext(ctx context.Context, query string, args ...any) (Result, error)
}

// Tx is an open transaction.
type Tx interface {
	Querier
	PrepareContext(ctx context.Context, query string) (Stmt, error)
	Commit() error
	Rollback() error
}

// DB is an open database handle.
type DB interface {
	Querier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
	Close() error
}

// Open opens a database with the configured driver.
func Open(cfg Config) (DB, error) {
	switch cfg.Driver {
	case DriverModernc, "":
		return OpenModernc(cfg)
	case DriverPostgres:
		return OpenPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %q", cfg.Driver)
	}
}

// OpenModernc opens (creating if needed) a SQLite database.
// The parent directory of a file database is created when missing.
func OpenModernc(cfg Config) (DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	raw, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer; also keeps ":memory:" databases on one connection.
	raw.SetMaxOpenConns(1)
	raw.SetMaxIdleConns(1)
	raw.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite, so pragmas are set explicitly.
	pragmas := []string{"PRAGMA foreign_keys = ON"}
	if cfg.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	if cfg.EnableWAL && cfg.Path != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := raw.Exec(p); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	return &sqlDB{raw}, nil
}

// OpenPostgres opens a PostgreSQL database through lib/pq.
func OpenPostgres(cfg Config) (DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	raw, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := raw.Ping(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &sqlDB{raw}, nil
}

type sqlDB struct {
	db *sql.DB
}

func (w *sqlDB) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (w *sqlDB) QueryRowContext(ctx context.Context, query string, args ...any) Row {
	return w.db.QueryRowContext(ctx, query, args...)
}

func (w *sqlDB) ExecContext(ctx context.Context, query string, args ...any) (Result, error) {
	return w.db.ExecContext(ctx, query, args...)
}

func (w *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	tx, err := w.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx}, nil
}

func (w *sqlDB) Close() error {
	return w.db.Close()
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t *sqlTx) QueryRowContext(ctx context.Context, query string, args ...any) Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t *sqlTx) ExecContext(ctx context.Context, query string, args ...any) (Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t *sqlTx) PrepareContext(ctx context.Context, query string) (Stmt, error) {
	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return &sqlStmt{stmt}, nil
}

func (t *sqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	return t.tx.Rollback()
}

type sqlStmt struct {
	stmt *sql.Stmt
}

func (s *sqlStmt) ExecContext(ctx context.Context, args ...any) (Result, error) {
	return s.stmt.ExecContext(ctx, args...)
}

func (s *sqlStmt) QueryRowContext(ctx context.Context, args ...any) Row {
	return s.stmt.QueryRowContext(ctx, args...)
}

func (s *sqlStmt) Close() error {
	return s.stmt.Close()
}
