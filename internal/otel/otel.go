// Package otel turns bus events into OpenTelemetry spans.
package otel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanpama/gqljit/internal/eventbus"
	"github.com/hanpama/gqljit/internal/events"
	"github.com/hanpama/gqljit/internal/reqid"
)

// Setup exports spans to the OTLP gRPC endpoint and subscribes to the global
// bus. An empty endpoint disables tracing.
func Setup(ctx context.Context, endpoint, service string) (shutdown func(context.Context) error, err error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := Subscribe(otel.Tracer("gqljit"))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Subscribe registers span handlers on the global bus that record through
// tracer.
func Subscribe(tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register()
}

type subscriber struct {
	tracer    trace.Tracer
	httpSpans sync.Map // execution id -> trace.Span
	gqlSpans  sync.Map // execution id -> trace.Span
}

// parent returns ctx carrying the innermost open span of the execution.
func (s *subscriber) parent(ctx context.Context) context.Context {
	rid, _ := reqid.FromContext(ctx)
	if v, ok := s.gqlSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	if v, ok := s.httpSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

// finished records a span for work that already happened.
func (s *subscriber) finished(ctx context.Context, name string, d time.Duration, err error, attrs ...attribute.KeyValue) {
	end := time.Now()
	_, span := s.tracer.Start(s.parent(ctx), name, trace.WithTimestamp(end.Add(-d)), trace.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End(trace.WithTimestamp(end))
}

func (s *subscriber) register() func() {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "http.request")
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Method),
				attribute.String("http.target", e.Target),
			)
			s.httpSpans.Store(rid, span)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			rid, _ := reqid.FromContext(ctx)
			if v, ok := s.httpSpans.LoadAndDelete(rid); ok {
				span := v.(trace.Span)
				span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
				span.End()
			}
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(s.parent(ctx), "graphql.operation")
			span.SetAttributes(
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("graphql.operation.type", e.OperationType),
			)
			s.gqlSpans.Store(rid, span)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			rid, _ := reqid.FromContext(ctx)
			if v, ok := s.gqlSpans.LoadAndDelete(rid); ok {
				span := v.(trace.Span)
				span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
				span.End()
			}
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.CompileFinish) {
			s.finished(ctx, "jit.compile", e.Duration, e.Err,
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.Int("jit.routines", e.Routines),
			)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ExecuteFinish) {
			s.finished(ctx, "jit.execute", e.Duration, e.Fatal,
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("jit.execution_id", e.ExecutionID),
				attribute.Int("graphql.error_count", e.Errors),
			)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
