//go:build cgo
// +build cgo

package main

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.UnmarshalFromString(out, &v))
	return v
}

func TestRunCommand_Document(t *testing.T) {
	dir := t.TempDir()
	sdl := writeFile(t, dir, "schema.graphql", testSDL)
	data := writeFile(t, dir, "root.yaml", "greeting: hi\nviewer:\n  name: ann\n  friend:\n    name: bob\n")

	out, err := execute(t, "run", "-s", sdl, "-d", data, "-q", "{ greeting viewer { name friend { name } } }")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"data": map[string]any{
		"greeting": "hi",
		"viewer":   map[string]any{"name": "ann", "friend": map[string]any{"name": "bob"}},
	}}, decode(t, out))

	// A missing key resolves to null without an error.
	data = writeFile(t, dir, "partial.json", `{"viewer": {"name": "ann", "friend": {}}}`)
	out, err = execute(t, "run", "-s", sdl, "-d", data, "-q", "{ viewer { friend { name } } }")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"viewer": map[string]any{"friend": map[string]any{"name": nil}}}, decode(t, out)["data"])
}

func TestRunCommand_SQLite(t *testing.T) {
	dir := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE users (name TEXT); INSERT INTO users VALUES ('ann');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	sdl := writeFile(t, dir, "schema.graphql", testSDL)
	writeFile(t, dir, "root.yaml", "greeting: hi\n")
	cfg := writeFile(t, dir, "gqljit.yaml", `
data: root.yaml
sqlite:
  dsn: app.db
  queries:
    viewer: {sql: "SELECT name FROM users LIMIT 1"}
`)

	out, err := execute(t, "run", "-s", sdl, "-c", cfg, "-q", "{ greeting viewer { name } }")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"data": map[string]any{
		"greeting": "hi",
		"viewer":   map[string]any{"name": "ann"},
	}}, decode(t, out))
}

func TestServeHandler(t *testing.T) {
	dir := t.TempDir()
	opts := &ServeOptions{
		RootOptions: &RootOptions{Schema: writeFile(t, dir, "schema.graphql", testSDL)},
	}
	opts.Data = writeFile(t, dir, "root.yaml", "greeting: hi\n")

	h, cleanup, err := newHandler(context.Background(), opts)
	require.NoError(t, err)
	defer cleanup()

	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString(`{"query":"{ greeting }"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, map[string]any{"data": map[string]any{"greeting": "hi"}}, decode(t, w.Body.String()))
}
