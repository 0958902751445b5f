package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"
)

// Query is a named SQL statement exposed as a root key. A single-row query
// yields a record of its columns, or null when no row matches. A list query
// yields the values of its first column.
type Query struct {
	SQL  string `yaml:"sql"`
	List bool   `yaml:"list,omitempty"`
}

// SQLite exposes named queries against one database. Lookups return
// functions taking a context, so a query only runs when a selection reaches
// it.
type SQLite struct {
	db      *sql.DB
	queries map[string]Query
}

// OpenSQLite opens the database at dsn and checks that every query
// prepares.
func OpenSQLite(ctx context.Context, dsn string, queries map[string]Query) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	// In-memory databases are per connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}

	names := make([]string, 0, len(queries))
	for name := range queries {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		stmt, err := db.PrepareContext(ctx, queries[name].SQL)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("query %q: %w", name, err)
		}
		stmt.Close()
	}
	return &SQLite{db: db, queries: queries}, nil
}

func (s *SQLite) Lookup(key string) (any, bool) {
	q, ok := s.queries[key]
	if !ok {
		return nil, false
	}
	if q.List {
		return func(ctx context.Context) (any, error) { return s.column(ctx, q.SQL) }, true
	}
	return func(ctx context.Context) (any, error) { return s.row(ctx, q.SQL) }, true
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) row(ctx context.Context, query string) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	record := make(map[string]any, len(cols))
	for i, c := range cols {
		record[c] = columnValue(values[i])
	}
	return record, rows.Err()
}

func (s *SQLite) column(ctx context.Context, query string) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	out := []any{}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, columnValue(values[0]))
	}
	return out, rows.Err()
}

// TEXT may come back as bytes.
func columnValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
