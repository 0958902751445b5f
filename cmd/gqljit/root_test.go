package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSDL = `
type Query {
  viewer: Viewer
  greeting: String
}
type Viewer {
  name: String!
  friend: Viewer
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestWATCommand(t *testing.T) {
	dir := t.TempDir()
	sdl := writeFile(t, dir, "schema.graphql", testSDL)

	out, err := execute(t, "wat", "-s", sdl, "-q", "{ greeting viewer { name friend { name } } }")
	require.NoError(t, err)
	assert.Contains(t, out, "(module")
	assert.Contains(t, out, `(export "execute")`)

	out, err = execute(t, "wat", "-s", sdl, "--routines",
		"-q", "query($deep: Boolean!) { viewer { name friend @include(if: $deep) { name } } }",
		"--variables", `{"deep": true}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"$execute.query.viewer.friend", "$execute.query.viewer", "$execute.query"},
		strings.Fields(out))
}

func TestWATCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	sdl := writeFile(t, dir, "schema.graphql", testSDL)

	_, err := execute(t, "wat", "-q", "{ greeting }")
	assert.ErrorContains(t, err, "--schema is required")

	_, err = execute(t, "wat", "-s", sdl)
	assert.ErrorContains(t, err, "an operation is required")

	_, err = execute(t, "wat", "-s", sdl, "-q", "{ viewer }")
	assert.ErrorContains(t, err, "must have a selection")

	_, err = execute(t, "wat", "-s", sdl, "-q", "{ greeting }", "--variables", "[1]")
	assert.ErrorContains(t, err, "invalid --variables")

	_, err = execute(t, "wat", "-s", sdl, "-q", "{ greeting }", "-f", "op.graphql")
	assert.ErrorContains(t, err, "none of the others can be")
}

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"run", "wat", "serve"})
	assert.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("schema"))
}
