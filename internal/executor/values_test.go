package executor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/gqljit/internal/language"
)

func operation(t *testing.T, query string) *language.OperationDefinition {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return doc.Operations[0]
}

func TestCoerceVariableValues(t *testing.T) {
	op := operation(t, `query Q($flag: Boolean = true, $n: Int!, $ids: [ID!], $name: String, $extra: Color) { a }`)

	got, err := coerceVariableValues(op, map[string]any{
		"n":     float64(3),
		"ids":   float64(7),
		"extra": "RED",
		"other": 1,
	})
	require.NoError(t, err)
	want := map[string]any{"flag": true, "n": 3, "ids": []any{"7"}, "extra": "RED"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("variables (-want +got):\n%s", diff)
	}
}

func TestCoerceVariableValues_Errors(t *testing.T) {
	op := operation(t, `query Q($n: Int!, $b: Boolean) { a }`)
	for name, vars := range map[string]map[string]any{
		"missing required": {},
		"null required":    {"n": nil},
		"fractional int":   {"n": 1.5},
		"wrong boolean":    {"n": 1, "b": "yes"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := coerceVariableValues(op, vars)
			require.Error(t, err)
		})
	}
}

func TestGetOperation(t *testing.T) {
	doc, err := language.ParseQuery(`query A { a } query B { b }`)
	require.NoError(t, err)
	require.Nil(t, getOperation(doc, ""))
	require.Equal(t, "B", getOperation(doc, "B").Name)
	require.Nil(t, getOperation(doc, "C"))

	single, err := language.ParseQuery(`{ a }`)
	require.NoError(t, err)
	require.NotNil(t, getOperation(single, ""))
}
