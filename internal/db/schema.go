package db

import (
	"context"
	"fmt"
	"strings"
)

// SchemaBuilder provides dialect-aware SQL generation and execution for schema operations.
type SchemaBuilder struct {
	db      Querier
	dialect Dialect
}

// NewSchemaBuilder creates a new schema builder for the given database (or transaction) and dialect.
func NewSchemaBuilder(db Querier, dialect Dialect) *SchemaBuilder {
	return &SchemaBuilder{
		db:      db,
		dialect: dialect,
	}
}

// Dialect returns the underlying SQL dialect.
func (s *SchemaBuilder) Dialect() Dialect {
	return s.dialect
}

// With returns a builder bound to another querier (typically a transaction).
func (s *SchemaBuilder) With(q Querier) *SchemaBuilder {
	return &SchemaBuilder{db: q, dialect: s.dialect}
}

// CreateTable creates a table if it doesn't exist.
func (s *SchemaBuilder) CreateTable(ctx context.Context, table string, columns []ColumnDef) error {
	sql := s.dialect.CreateTableSQL(table, columns)
	_, err := s.db.ExecContext(ctx, sql)
	return err
}

// CreateIndex creates an index if it doesn't exist.
func (s *SchemaBuilder) CreateIndex(ctx context.Context, table, indexName string, columns []string, unique bool) error {
	sql := s.dialect.CreateIndexSQL(table, indexName, columns, unique)
	_, err := s.db.ExecContext(ctx, sql)
	return err
}

// DropTable drops a table if it exists.
func (s *SchemaBuilder) DropTable(ctx context.Context, table string) error {
	_, err := s.db.ExecContext(ctx, s.dialect.DropTableSQL(table))
	return err
}

// TableExists reports whether table exists.
func (s *SchemaBuilder) TableExists(ctx context.Context, table string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.SubstitutePlaceholders(s.dialect.TableExistsSQL()), table).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RunInitStatements executes dialect-specific initialization statements.
// For SQLite, this enables foreign keys.
func (s *SchemaBuilder) RunInitStatements(ctx context.Context) error {
	for _, stmt := range s.dialect.InitStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init statement %q: %w", stmt, err)
		}
	}
	return nil
}

// QueryBuilder provides a fluent interface for building and executing queries.
type QueryBuilder struct {
	schema   *SchemaBuilder
	table    string
	distinct bool
	cols     []string
	where    []string
	args     []any
	order    string
}

// Query starts building a SELECT query for the given table.
func (s *SchemaBuilder) Query(table string) *QueryBuilder {
	return &QueryBuilder{
		schema: s,
		table:  table,
	}
}

// Select specifies the columns to select.
func (q *QueryBuilder) Select(cols ...string) *QueryBuilder {
	q.cols = cols
	return q
}

// Distinct turns the query into SELECT DISTINCT.
func (q *QueryBuilder) Distinct() *QueryBuilder {
	q.distinct = true
	return q
}

// Where adds a WHERE condition. Write parameters as "?"; Exec substitutes
// them for the dialect.
func (q *QueryBuilder) Where(condition string, args ...any) *QueryBuilder {
	q.where = append(q.where, condition)
	q.args = append(q.args, args...)
	return q
}

// OrderBy sets the ORDER BY clause.
func (q *QueryBuilder) OrderBy(order string) *QueryBuilder {
	q.order = order
	return q
}

// SQL returns the generated SQL query string.
func (q *QueryBuilder) SQL() string {
	cols := "*"
	if len(q.cols) > 0 {
		cols = strings.Join(q.cols, ", ")
	}

	sel := "SELECT"
	if q.distinct {
		sel = "SELECT DISTINCT"
	}
	sql := fmt.Sprintf("%s %s FROM %s", sel, cols, q.table)

	if len(q.where) > 0 {
		sql += " WHERE " + strings.Join(q.where, " AND ")
	}

	if q.order != "" {
		sql += " ORDER BY " + q.order
	}

	return sql
}

// Exec executes the query and returns rows.
func (q *QueryBuilder) Exec(ctx context.Context) (Rows, error) {
	return q.schema.db.QueryContext(ctx, q.schema.SubstitutePlaceholders(q.SQL()), q.args...)
}

// ExecRow executes the query expecting a single row.
func (q *QueryBuilder) ExecRow(ctx context.Context) Row {
	return q.schema.db.QueryRowContext(ctx, q.schema.SubstitutePlaceholders(q.SQL()), q.args...)
}

// SubstitutePlaceholders converts ? placeholders to the dialect's format.
// Example: "SELECT * FROM t WHERE id = ? AND name = ?" becomes
// "SELECT * FROM t WHERE id = $1 AND name = $2" for PostgreSQL.
func (s *SchemaBuilder) SubstitutePlaceholders(sql string) string {
	if s.dialect.Name() == "sqlite" {
		return sql
	}

	var result strings.Builder
	idx := 1
	for _, ch := range sql {
		if ch == '?' {
			result.WriteString(s.dialect.Placeholder(idx))
			idx++
		} else {
			result.WriteRune(ch)
		}
	}
	return result.String()
}
