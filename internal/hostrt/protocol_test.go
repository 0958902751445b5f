package hostrt

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type viewer struct {
	Hello    string
	Nickname string `graphql:"nick"`
	FullName string
	secret   string
}

func (v *viewer) Greeting(ctx any) string { return "hi " + fmt.Sprint(ctx) }

type attrs struct{ m map[string]any }

func (a attrs) Attr(name string) (any, bool) {
	v, ok := a.m[name]
	return v, ok
}

type lookup struct{}

func (lookup) Lookup(key string) (any, bool) {
	if key == "Hello" {
		return "world!", true
	}
	return nil, false
}

func mustValue(t *testing.T, h *Heap, handle Handle) any {
	t.Helper()
	require.NotEqual(t, Null, handle)
	v, err := h.Unbox(handle)
	require.NoError(t, err)
	require.NoError(t, h.DecRef(handle))
	return v
}

func TestProtocol_KeyedLookup(t *testing.T) {
	type named map[string]string

	for name, src := range map[string]any{
		"map[string]any": map[string]any{"Hello": "world!"},
		"named map":      named{"Hello": "world!"},
		"Mapping":        lookup{},
	} {
		t.Run(name, func(t *testing.T) {
			h := NewHeap(nil)
			s := h.Box(src)
			require.Equal(t, int32(1), h.MappingCheck(s))

			got, err := h.MappingGetItem(s, "Hello")
			require.NoError(t, err)
			require.Equal(t, "world!", mustValue(t, h, got))

			missing, err := h.MappingGetItem(s, "nope")
			require.NoError(t, err)
			require.Equal(t, Null, missing)
			require.True(t, h.Pending())
			h.ErrClear()

			require.NoError(t, h.DecRef(s))
			require.Equal(t, 0, h.Live())
		})
	}
}

func TestProtocol_Attributes(t *testing.T) {
	h := NewHeap(nil)
	s := h.Box(&viewer{Hello: "world!", Nickname: "vv", FullName: "V V", secret: "x"})
	require.Equal(t, int32(0), h.MappingCheck(s))

	cases := map[string]any{
		"Hello":     "world!",
		"nick":      "vv",
		"full_name": "V V",
		"fullName":  "V V",
	}
	for name, want := range cases {
		got, err := h.GetAttr(s, name)
		require.NoError(t, err)
		require.Equal(t, want, mustValue(t, h, got), name)
	}

	for _, name := range []string{"secret", "missing"} {
		got, err := h.GetAttr(s, name)
		require.NoError(t, err)
		require.Equal(t, Null, got, name)
		h.ErrClear()
	}

	method, err := h.GetAttr(s, "greeting")
	require.NoError(t, err)
	require.Equal(t, int32(1), h.CallableCheck(method))
	require.NoError(t, h.DecRef(method))

	a := h.Box(attrs{m: map[string]any{"Hello": "attr"}})
	got, err := h.GetAttr(a, "Hello")
	require.NoError(t, err)
	require.Equal(t, "attr", mustValue(t, h, got))

	require.NoError(t, h.DecRef(a))
	require.NoError(t, h.DecRef(s))
	require.Equal(t, 0, h.Live())
}

func callWith(t *testing.T, h *Heap, fn any, ctx any) Handle {
	t.Helper()
	f := h.Box(fn)
	args, err := h.TupleNew(1)
	require.NoError(t, err)
	_, err = h.TupleSetItem(args, 0, h.Box(ctx))
	require.NoError(t, err)
	out, err := h.Call(f, args, None)
	require.NoError(t, err)
	require.NoError(t, h.DecRef(args))
	require.NoError(t, h.DecRef(f))
	return out
}

func TestProtocol_Call(t *testing.T) {
	t.Run("context argument", func(t *testing.T) {
		h := NewHeap(nil)
		out := callWith(t, h, func(ctx string) string { return "hello " + ctx }, "ctx")
		require.Equal(t, "hello ctx", mustValue(t, h, out))
		require.Equal(t, 0, h.Live())
	})

	t.Run("getter ignores context", func(t *testing.T) {
		h := NewHeap(nil)
		out := callWith(t, h, func() int { return 7 }, "ctx")
		require.Equal(t, 7, mustValue(t, h, out))
	})

	t.Run("kwargs parameter gets empty bag", func(t *testing.T) {
		h := NewHeap(nil)
		out := callWith(t, h, func(ctx any, kw map[string]any) (int, error) { return len(kw), nil }, nil)
		require.Equal(t, 0, mustValue(t, h, out))
	})

	t.Run("error result raises", func(t *testing.T) {
		h := NewHeap(nil)
		out := callWith(t, h, func(any) (any, error) { return nil, errors.New("boom") }, nil)
		require.Equal(t, Null, out)
		exc, err := h.TakeException()
		require.NoError(t, err)
		require.False(t, exc.Fatal)
		require.EqualError(t, exc, "boom")
		require.Equal(t, 0, h.Live())
	})

	t.Run("panic is fatal", func(t *testing.T) {
		h := NewHeap(nil)
		out := callWith(t, h, func(any) any { panic("kaboom") }, nil)
		require.Equal(t, Null, out)
		exc, err := h.TakeException()
		require.NoError(t, err)
		require.True(t, exc.Fatal)
		require.NotEmpty(t, exc.Trace)
	})

	t.Run("arity mismatch", func(t *testing.T) {
		h := NewHeap(nil)
		out := callWith(t, h, func(a, b any) any { return nil }, nil)
		require.Equal(t, Null, out)
		require.True(t, h.Pending())
		h.ErrClear()
		require.Equal(t, 0, h.Live())
	})
}

func TestProtocol_CallResolver(t *testing.T) {
	var table Resolvers
	ok := table.Register(func(source, ctx any) (any, error) { return source, nil })
	fail := table.Register(func(source, ctx any) (any, error) { return nil, fmt.Errorf("boom") })
	fatal := table.Register(func(source, ctx any) (any, error) { return nil, Fatal(errors.New("abort")) })
	canceled := table.Register(func(source, ctx any) (any, error) { return nil, context.Canceled })
	panics := table.Register(func(source, ctx any) (any, error) { panic("x") })

	h := NewHeap(&table)
	src := h.Box("root")

	v, err := h.CallResolver(ok, src, None)
	require.NoError(t, err)
	require.Equal(t, int32(0), h.ExcMatches(v, 1))
	require.Equal(t, "root", mustValue(t, h, v))

	for id, wantFatal := range map[int32]bool{fail: false, fatal: true, canceled: true, panics: true} {
		v, err := h.CallResolver(id, src, None)
		require.NoError(t, err)
		require.False(t, h.Pending(), "resolver failures are values, not pending state")
		require.Equal(t, int32(1), h.ExcMatches(v, 1))
		if wantFatal {
			require.Equal(t, int32(0), h.ExcMatches(v, 2), "resolver %d", id)
		} else {
			require.Equal(t, int32(1), h.ExcMatches(v, 2), "resolver %d", id)
		}
		require.NoError(t, h.DecRef(v))
	}

	_, err = h.CallResolver(99, src, None)
	require.Error(t, err)

	require.NoError(t, h.DecRef(src))
	require.Equal(t, 0, h.Live())
}

func TestException_StateTransfer(t *testing.T) {
	var table Resolvers
	id := table.Register(func(source, ctx any) (any, error) { return nil, Fatal(errors.New("abort")) })
	h := NewHeap(&table)

	exc, err := h.CallResolver(id, None, None)
	require.NoError(t, err)
	typ, err := h.ObjectType(exc)
	require.NoError(t, err)
	tb, err := h.ExceptionGetTraceback(exc)
	require.NoError(t, err)
	require.NotEqual(t, None, tb)

	h.ErrRestore(typ, exc, tb)
	require.True(t, h.Pending())

	got, err := h.TakeException()
	require.NoError(t, err)
	require.True(t, got.Fatal)
	require.ErrorIs(t, got, ErrFatal)
	require.False(t, h.Pending())
	require.Equal(t, 0, h.Live())
}

func TestException_LocatedError(t *testing.T) {
	var table Resolvers
	id := table.Register(func(source, ctx any) (any, error) { return nil, errors.New("boom") })
	h := NewHeap(&table)

	exc, err := h.CallResolver(id, None, None)
	require.NoError(t, err)
	path, err := h.TupleNew(3)
	require.NoError(t, err)
	for i, seg := range []Handle{h.StrFromUTF8("query"), h.StrFromUTF8("viewer"), h.LongFromI64(0)} {
		_, err := h.TupleSetItem(path, int32(i), seg)
		require.NoError(t, err)
	}

	le, err := h.NewLocatedError(exc, None, path)
	require.NoError(t, err)
	require.NoError(t, h.DecRef(exc))
	require.NoError(t, h.DecRef(path))

	v, err := h.Value(le)
	require.NoError(t, err)
	located := v.(*LocatedError)
	require.Equal(t, []any{"query", "viewer", 0}, located.Path)
	require.EqualError(t, located.Err, "boom")
	require.NotEmpty(t, located.Traceback)

	b, err := located.MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `{"message":"boom","path":["query","viewer",0]}`, string(b))

	require.NoError(t, h.DecRef(le))
	require.Equal(t, 0, h.Live())
}
