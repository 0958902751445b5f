//go:build cgo
// +build cgo

package jit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/gqljit/internal/hostrt"
	"github.com/hanpama/gqljit/internal/selection"
)

func compile(t *testing.T, root *selection.ObjectField) *Program {
	t.Helper()
	backend, err := NewBackend()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	program, err := backend.Compile(root)
	require.NoError(t, err)
	return program
}

// run executes program and checks that every reference it took was released.
func run(t *testing.T, program *Program, root any) *Result {
	t.Helper()
	live := -1
	heapHook = func(h *hostrt.Heap) { live = h.Live() }
	defer func() { heapHook = nil }()

	result, err := program.Run(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, 0, live, "heap still holds references")
	return result
}

func paths(errs []*LocatedError) [][]any {
	var out [][]any
	for _, e := range errs {
		out = append(out, e.Path)
	}
	return out
}

func requireData(t *testing.T, want, got any) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestProgram_ViewerScenario(t *testing.T) {
	program := compile(t, viewerTree(&selection.ScalarField{FieldName: "Hello", IsNullable: true}))
	root := map[string]any{"viewer": map[string]any{"Hello": "world!"}}

	for i := 0; i < 3; i++ {
		result := run(t, program, root)
		requireData(t, map[string]any{
			"viewer":  map[string]any{"Hello": "world!"},
			"viewer2": map[string]any{"Hello": "world!"},
		}, result.Data)
		require.Empty(t, result.Errors)
	}
}

func TestProgram_RecoverableErrors(t *testing.T) {
	t.Run("nullable field", func(t *testing.T) {
		program := compile(t, viewerTree(&selection.ScalarField{FieldName: "Hello", IsNullable: true, Resolve: failing}))
		result := run(t, program, map[string]any{"viewer": map[string]any{}})
		requireData(t, map[string]any{
			"viewer":  map[string]any{"Hello": nil},
			"viewer2": map[string]any{"Hello": nil},
		}, result.Data)
		requireData(t, [][]any{{"query", "viewer", "Hello"}, {"query", "viewer2", "Hello"}}, paths(result.Errors))
		for _, e := range result.Errors {
			require.ErrorIs(t, e, errBoom)
		}
	})

	t.Run("non-null field", func(t *testing.T) {
		program := compile(t, viewerTree(&selection.ScalarField{FieldName: "Hello", Resolve: failing}))
		result := run(t, program, map[string]any{"viewer": map[string]any{}})
		requireData(t, map[string]any{"viewer": nil, "viewer2": nil}, result.Data)
		requireData(t, [][]any{{"query", "viewer", "Hello"}, {"query", "viewer2", "Hello"}}, paths(result.Errors))
	})
}

type profile struct {
	Hello string
}

type account struct {
	Viewer *profile
}

func TestProgram_DefaultResolution(t *testing.T) {
	program := compile(t, viewerTree(&selection.ScalarField{FieldName: "Hello", IsNullable: true}))

	tests := []struct {
		name string
		root any
		want any
	}{
		{
			name: "attributes",
			root: &account{Viewer: &profile{Hello: "world!"}},
			want: map[string]any{"viewer": map[string]any{"Hello": "world!"}, "viewer2": map[string]any{"Hello": "world!"}},
		},
		{
			name: "callable values",
			root: map[string]any{"viewer": func() any {
				return map[string]any{"Hello": func(ctx context.Context) (string, error) { return "lazy", nil }}
			}},
			want: map[string]any{"viewer": map[string]any{"Hello": "lazy"}, "viewer2": map[string]any{"Hello": "lazy"}},
		},
		{
			name: "missing key",
			root: map[string]any{"viewer": map[string]any{}},
			want: map[string]any{"viewer": map[string]any{"Hello": nil}, "viewer2": map[string]any{"Hello": nil}},
		},
		{
			name: "null object",
			root: map[string]any{"viewer": nil},
			want: map[string]any{"viewer": nil, "viewer2": nil},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := run(t, program, tt.root)
			requireData(t, tt.want, result.Data)
			require.Empty(t, result.Errors)
		})
	}
}

func TestProgram_CallableFailure(t *testing.T) {
	program := compile(t, viewerTree(&selection.ScalarField{FieldName: "Hello", IsNullable: true}))
	root := map[string]any{"viewer": map[string]any{
		"Hello": func() (string, error) { return "", errBoom },
	}}
	result := run(t, program, root)
	requireData(t, map[string]any{
		"viewer":  map[string]any{"Hello": nil},
		"viewer2": map[string]any{"Hello": nil},
	}, result.Data)
	require.Len(t, result.Errors, 2)
	require.ErrorIs(t, result.Errors[0], errBoom)
}

func TestProgram_Bubbling(t *testing.T) {
	leaf := &selection.ScalarField{FieldName: "c", Resolve: failing}
	chain := func(depth int, nullableTop bool) *selection.ObjectField {
		var field selection.Field = leaf
		for i := depth; i > 0; i-- {
			field = &selection.ObjectField{
				FieldName:  fmt.Sprintf("o%d", i),
				IsNullable: i == 1 && nullableTop,
				Resolve:    selection.Identity,
				Selection:  selection.New(selection.Entry{Alias: field.Name(), Field: field}),
			}
		}
		return selection.Root(selection.New(
			selection.Entry{Alias: field.Name(), Field: field},
			selection.Entry{Alias: "sibling", Field: &selection.ScalarField{FieldName: "sibling", IsNullable: true}},
		))
	}
	root := map[string]any{"sibling": "kept"}

	for depth := 1; depth <= 3; depth++ {
		t.Run(fmt.Sprintf("absorbed at depth %d", depth), func(t *testing.T) {
			result := run(t, compile(t, chain(depth, true)), root)
			requireData(t, map[string]any{"o1": nil, "sibling": "kept"}, result.Data)
			want := []any{"query"}
			for i := 1; i <= depth; i++ {
				want = append(want, fmt.Sprintf("o%d", i))
			}
			requireData(t, [][]any{append(want, "c")}, paths(result.Errors))
		})
		t.Run(fmt.Sprintf("reaches root from depth %d", depth), func(t *testing.T) {
			result := run(t, compile(t, chain(depth, false)), root)
			require.Nil(t, result.Data)
			require.Len(t, result.Errors, 1)
		})
	}
}

func TestProgram_RootResolverFailure(t *testing.T) {
	tree := viewerTree(&selection.ScalarField{FieldName: "Hello", IsNullable: true})
	tree.Resolve = failing
	result := run(t, compile(t, tree), map[string]any{})
	require.Nil(t, result.Data)
	requireData(t, [][]any{{"query"}}, paths(result.Errors))
}

func TestProgram_Fatal(t *testing.T) {
	fatalErrs := map[string]selection.Resolver{
		"wrapped": func(source, ctx any) (any, error) { return nil, hostrt.Fatal(errBoom) },
		"canceled": func(source, ctx any) (any, error) {
			return nil, fmt.Errorf("load: %w", context.Canceled)
		},
		"panic": func(source, ctx any) (any, error) { panic("boom") },
	}
	for name, fatal := range fatalErrs {
		t.Run(name, func(t *testing.T) {
			var (
				mu    sync.Mutex
				calls []string
			)
			record := func(alias string, fn selection.Resolver) selection.Resolver {
				return func(source, ctx any) (any, error) {
					mu.Lock()
					calls = append(calls, alias)
					mu.Unlock()
					return fn(source, ctx)
				}
			}
			program := compile(t, selection.Root(selection.New(
				selection.Entry{Alias: "err", Field: &selection.ScalarField{FieldName: "err", IsNullable: true, Resolve: record("err", failing)}},
				selection.Entry{Alias: "a", Field: &selection.ScalarField{FieldName: "a", IsNullable: true, Resolve: record("a", selection.Identity)}},
				selection.Entry{Alias: "nested", Field: &selection.ObjectField{
					FieldName: "nested", IsNullable: true, Resolve: record("nested", selection.Identity),
					Selection: selection.New(
						selection.Entry{Alias: "b", Field: &selection.ScalarField{FieldName: "b", IsNullable: true, Resolve: record("b", fatal)}},
					),
				}},
				selection.Entry{Alias: "c", Field: &selection.ScalarField{FieldName: "c", IsNullable: true, Resolve: record("c", selection.Identity)}},
			)))

			sink := &ErrorSink{}
			data, err := program.Execute(map[string]any{}, nil, sink)
			require.Nil(t, data)
			var exc *hostrt.Exception
			require.True(t, errors.As(err, &exc))
			require.True(t, exc.Fatal)
			require.Equal(t, []string{"err", "a", "nested", "b"}, calls)
			// Only the recoverable failure before the fatal one is located.
			requireData(t, [][]any{{"query", "err"}}, paths(sink.Errors()))
		})
	}
}

func TestProgram_Concurrent(t *testing.T) {
	program := compile(t, viewerTree(&selection.ScalarField{FieldName: "Hello", IsNullable: true}))

	var wg sync.WaitGroup
	results := make([]*Result, 16)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			root := map[string]any{"viewer": map[string]any{"Hello": i}}
			results[i], errs[i] = program.Run(context.Background(), root)
		}(i)
	}
	wg.Wait()
	for i, result := range results {
		require.NoError(t, errs[i])
		requireData(t, map[string]any{
			"viewer":  map[string]any{"Hello": i},
			"viewer2": map[string]any{"Hello": i},
		}, result.Data)
	}
}

func TestBackend_Closed(t *testing.T) {
	backend, err := NewBackend()
	require.NoError(t, err)
	require.NoError(t, backend.Close())
	require.ErrorIs(t, backend.Close(), ErrBackendClosed)
	_, err = backend.Compile(viewerTree(&selection.ScalarField{FieldName: "Hello"}))
	require.ErrorIs(t, err, ErrBackendClosed)
}

func TestBackend_CompileInvalid(t *testing.T) {
	backend, err := NewBackend()
	require.NoError(t, err)
	defer backend.Close()
	_, err = backend.Compile(selection.Root(selection.New()))
	require.Error(t, err)
}
