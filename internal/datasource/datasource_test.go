package datasource

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	want := Document{"viewer": map[string]any{"Hello": "world!"}}

	doc, err := LoadFile(writeFile(t, dir, "root.yaml", "viewer:\n  Hello: world!\n"))
	require.NoError(t, err)
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("yaml (-want +got):\n%s", diff)
	}

	doc, err = LoadFile(writeFile(t, dir, "root.json", `{"viewer": {"Hello": "world!"}}`))
	require.NoError(t, err)
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("json (-want +got):\n%s", diff)
	}

	_, err = LoadFile(writeFile(t, dir, "list.yaml", "- 1\n- 2\n"))
	require.ErrorContains(t, err, "must be a mapping")
}

func TestDecodeYAML_Normalizes(t *testing.T) {
	doc, err := DecodeYAML([]byte("items:\n  - {1: one, 2: two}\nempty:\n"))
	require.NoError(t, err)
	want := Document{
		"items": []any{map[string]any{"1": "one", "2": "two"}},
		"empty": nil,
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	doc, err = DecodeYAML(nil)
	require.NoError(t, err)
	require.Empty(t, doc)
}

func seed(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`
		CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, score REAL);
		INSERT INTO users (name, score) VALUES ('ann', 1.5), ('bob', NULL);
	`)
	require.NoError(t, err)
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	seed(t, path)
	ctx := context.Background()

	src, err := OpenSQLite(ctx, path, map[string]Query{
		"first":   {SQL: "SELECT name, score FROM users ORDER BY id LIMIT 1"},
		"nobody":  {SQL: "SELECT name FROM users WHERE id = 99"},
		"names":   {SQL: "SELECT name FROM users ORDER BY id", List: true},
		"missing": {SQL: "SELECT name FROM users WHERE id = 99", List: true},
	})
	require.NoError(t, err)
	defer src.Close()

	call := func(key string) any {
		v, ok := src.Lookup(key)
		require.True(t, ok)
		out, err := v.(func(context.Context) (any, error))(ctx)
		require.NoError(t, err)
		return out
	}
	require.Equal(t, map[string]any{"name": "ann", "score": 1.5}, call("first"))
	require.Nil(t, call("nobody"))
	require.Equal(t, []any{"ann", "bob"}, call("names"))
	require.Equal(t, []any{}, call("missing"))

	_, ok := src.Lookup("unknown")
	require.False(t, ok)
}

func TestOpenSQLite_BadQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	seed(t, path)
	_, err := OpenSQLite(context.Background(), path, map[string]Query{"bad": {SQL: "SELECT nope FROM nowhere"}})
	require.ErrorContains(t, err, `query "bad"`)
}

func TestConfig(t *testing.T) {
	dir := t.TempDir()
	seed(t, filepath.Join(dir, "app.db"))
	writeFile(t, dir, "root.yaml", "greeting: hi\nfirst: shadowed\n")
	path := writeFile(t, dir, "gqljit.yaml", `
data: root.yaml
sqlite:
  dsn: app.db
  queries:
    first: {sql: "SELECT name FROM users ORDER BY id LIMIT 1"}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "root.yaml"), cfg.Data)
	require.Equal(t, filepath.Join(dir, "app.db"), cfg.SQLite.DSN)

	root, closeFn, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer closeFn()

	greeting, ok := root.Lookup("greeting")
	require.True(t, ok)
	require.Equal(t, "hi", greeting)
	first, ok := root.Lookup("first")
	require.True(t, ok)
	require.IsType(t, func(context.Context) (any, error) { return nil, nil }, first)

	_, err = LoadConfig(writeFile(t, dir, "typo.yaml", "dat: root.yaml\n"))
	require.ErrorContains(t, err, "failed to parse config")
}
