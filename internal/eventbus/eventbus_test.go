package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type ping struct{ n int }
type pong struct{}

func TestBus_DispatchByType(t *testing.T) {
	b := New()
	var got []int
	unsubA := On(b, func(_ context.Context, p ping) { got = append(got, p.n) })
	unsubB := On(b, func(_ context.Context, p ping) { got = append(got, p.n*10) })
	On(b, func(context.Context, pong) { t.Fatal("pong handler called for ping") })

	Emit(context.Background(), b, ping{1})
	require.Equal(t, []int{1, 10}, got)

	// Closures share code, so removal must go by subscription.
	unsubB()
	unsubB()
	Emit(context.Background(), b, ping{2})
	require.Equal(t, []int{1, 10, 2}, got)

	unsubA()
	Emit(context.Background(), b, ping{3})
	require.Equal(t, []int{1, 10, 2}, got)
}

func TestGlobal(t *testing.T) {
	Use(nil)
	Subscribe(func(context.Context, ping) { t.Fatal("no bus installed") })()
	Publish(context.Background(), ping{})

	b := New()
	Use(b)
	defer Use(nil)
	var n int
	unsub := Subscribe(func(_ context.Context, p ping) { n += p.n })
	defer unsub()
	Publish(context.Background(), ping{5})
	require.Equal(t, 5, n)
}
