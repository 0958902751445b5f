package otel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/hanpama/gqljit/internal/eventbus"
	"github.com/hanpama/gqljit/internal/events"
	"github.com/hanpama/gqljit/internal/reqid"
)

func TestSubscriber_Spans(t *testing.T) {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	unsubscribe := Subscribe(tp.Tracer("test"))
	defer unsubscribe()

	ctx, _ := reqid.NewContext(context.Background())
	eventbus.Publish(ctx, events.HTTPStart{Method: "POST", Target: "/graphql"})
	eventbus.Publish(ctx, events.GraphQLStart{OperationName: "Q", OperationType: "query"})
	eventbus.Publish(ctx, events.CompileFinish{OperationName: "Q", Routines: 3, Duration: time.Millisecond})
	eventbus.Publish(ctx, events.ExecuteFinish{OperationName: "Q", Fatal: errors.New("boom"), Duration: time.Millisecond})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationName: "Q", OperationType: "query"})
	eventbus.Publish(ctx, events.HTTPFinish{Method: "POST", Target: "/graphql", Status: 200})

	spans := recorder.Ended()
	var names []string
	byName := map[string]sdktrace.ReadOnlySpan{}
	for _, s := range spans {
		names = append(names, s.Name())
		byName[s.Name()] = s
	}
	require.Equal(t, []string{"jit.compile", "jit.execute", "graphql.operation", "http.request"}, names)

	op := byName["graphql.operation"].SpanContext().SpanID()
	require.Equal(t, op, byName["jit.compile"].Parent().SpanID())
	require.Equal(t, op, byName["jit.execute"].Parent().SpanID())
	require.Equal(t, byName["http.request"].SpanContext().SpanID(), byName["graphql.operation"].Parent().SpanID())
	require.Len(t, byName["jit.execute"].Events(), 1)
}

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), "", "gqljit")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
