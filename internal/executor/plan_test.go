package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/gqljit/internal/language"
	"github.com/hanpama/gqljit/internal/schema"
)

func TestPlan(t *testing.T) {
	sch, err := schema.BuildFromSDL(`type Query { a: String b: String! }`)
	require.NoError(t, err)
	e := NewExecutor(nil, sch)

	doc, err := language.ParseQuery(`query Q($skip: Boolean!) { a x: b @skip(if: $skip) } subscription S { a }`)
	require.NoError(t, err)

	op, tree, errs := e.Plan(doc, "Q", map[string]any{"skip": false})
	require.Nil(t, errs)
	require.Equal(t, "Q", op.Name)
	require.Equal(t, "query", tree.FieldName)
	var aliases []string
	for _, entry := range tree.Selection.Entries() {
		aliases = append(aliases, entry.Alias)
	}
	require.Equal(t, []string{"a", "x"}, aliases)
	x, _ := tree.Selection.Get("x")
	require.False(t, x.Nullable())

	_, tree, errs = e.Plan(doc, "Q", map[string]any{"skip": true})
	require.Nil(t, errs)
	require.Equal(t, 1, tree.Selection.Len())

	_, _, errs = e.Plan(doc, "S", nil)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Message, "unsupported operation type")

	_, _, errs = e.Plan(doc, "", nil)
	require.Equal(t, []GraphQLError{{Message: "operation not found"}}, errs)

	// Without a backend nothing compiles.
	_, errs = e.Prepare(context.Background(), doc, "Q", map[string]any{"skip": false})
	require.Equal(t, []GraphQLError{{Message: "executor has no backend"}}, errs)
}
