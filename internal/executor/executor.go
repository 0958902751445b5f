package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/hanpama/gqljit/internal/eventbus"
	"github.com/hanpama/gqljit/internal/events"
	"github.com/hanpama/gqljit/internal/hostrt"
	"github.com/hanpama/gqljit/internal/jit"
	"github.com/hanpama/gqljit/internal/language"
	"github.com/hanpama/gqljit/internal/reqid"
	"github.com/hanpama/gqljit/internal/schema"
	"github.com/hanpama/gqljit/internal/selection"
)

// Executor prepares and runs operations against one schema. It holds no
// per-operation state and is safe for concurrent use.
type Executor struct {
	schema  *schema.Schema
	backend *jit.Backend
	logger  *slog.Logger
}

type Option func(*Executor)

// WithLogger sets the logger for preparation and execution diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewExecutor(backend *jit.Backend, schema *schema.Schema, opts ...Option) *Executor {
	e := &Executor{
		schema:  schema,
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Prepared is an operation compiled for one set of variables.
type Prepared struct {
	Operation *language.OperationDefinition
	Program   *jit.Program
}

// Plan selects the operation, coerces variables and builds the selection
// tree for its root type. It does not need a backend.
func (e *Executor) Plan(
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
) (*language.OperationDefinition, *selection.ObjectField, []GraphQLError) {
	operation := getOperation(document, operationName)
	if operation == nil {
		return nil, nil, []GraphQLError{{Message: "operation not found"}}
	}
	coerced, err := coerceVariableValues(operation, variableValues)
	if err != nil {
		return operation, nil, []GraphQLError{{Message: err.Error()}}
	}

	var rootType *schema.Type
	switch operation.Operation {
	case language.Query:
		rootType = e.schema.GetQueryType()
	case language.Mutation:
		rootType = e.schema.GetMutationType()
	default:
		return operation, nil, []GraphQLError{{Message: fmt.Sprintf("unsupported operation type: %s", operation.Operation)}}
	}
	if rootType == nil {
		return operation, nil, []GraphQLError{{Message: fmt.Sprintf("root type not found for %s operation", operation.Operation)}}
	}
	tree, err := selection.FromQuery(e.schema, rootType, operation.SelectionSet, document, coerced)
	if err != nil {
		return operation, nil, requestErrors(err)
	}
	return operation, tree, nil
}

// Prepare plans the operation and compiles its tree. The returned errors are
// request errors.
func (e *Executor) Prepare(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
) (*Prepared, []GraphQLError) {
	start := time.Now()
	operation, tree, errs := e.Plan(document, operationName, variableValues)
	var (
		program *jit.Program
		err     error
	)
	if errs == nil && e.backend == nil {
		errs = []GraphQLError{{Message: "executor has no backend"}}
	}
	if errs == nil {
		program, err = e.backend.Compile(tree)
		if err != nil {
			errs = requestErrors(err)
		}
	}
	if operation == nil {
		return nil, errs
	}

	routines := 0
	if program != nil {
		routines = len(program.Routines())
	}
	eventbus.Publish(ctx, events.CompileFinish{
		OperationName: operation.Name,
		Routines:      routines,
		Err:           joinErrors(errs),
		Duration:      time.Since(start),
	})
	if errs != nil {
		e.logger.DebugContext(ctx, "operation rejected", "operation", operation.Name, "errors", len(errs))
		return nil, errs
	}
	return &Prepared{Operation: operation, Program: program}, nil
}

func joinErrors(errs []GraphQLError) error {
	var merr *multierror.Error
	for _, e := range errs {
		merr = multierror.Append(merr, e)
	}
	return merr.ErrorOrNil()
}

// requestErrors splits aggregated diagnostics into one error each.
func requestErrors(err error) []GraphQLError {
	var merr *multierror.Error
	if errors.As(err, &merr) {
		out := make([]GraphQLError, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			out = append(out, GraphQLError{Message: e.Error()})
		}
		return out
	}
	return []GraphQLError{{Message: err.Error()}}
}

// Run executes a prepared operation with initialValue as root. A nil initial
// value runs the root fields against an empty record.
func (e *Executor) Run(ctx context.Context, prepared *Prepared, initialValue any) *ExecutionResult {
	if initialValue == nil {
		initialValue = map[string]any{}
	}
	ctx, id := reqid.Ensure(ctx)
	start := time.Now()
	sink := &jit.ErrorSink{}
	data, err := prepared.Program.Execute(initialValue, ctx, sink)

	located := sink.Errors()
	result := &ExecutionResult{Data: data, Errors: make([]GraphQLError, 0, len(located))}
	for _, le := range located {
		result.Errors = append(result.Errors, locatedError(le))
	}
	if err != nil {
		result.Data = nil
		result.Errors = append(result.Errors, fatalError(err))
	}

	eventbus.Publish(ctx, events.ExecuteFinish{
		OperationName: prepared.Operation.Name,
		ExecutionID:   id,
		Errors:        len(located),
		Fatal:         err,
		Duration:      time.Since(start),
	})
	e.logger.DebugContext(ctx, "operation executed",
		"operation", prepared.Operation.Name,
		"execution_id", id,
		"errors", len(result.Errors),
		"fatal", err != nil,
	)
	return result
}

// ExecuteRequest prepares and runs one operation of document.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	prepared, errs := e.Prepare(ctx, document, operationName, variableValues)
	if errs != nil {
		return &ExecutionResult{Errors: errs}
	}
	return e.Run(ctx, prepared, initialValue)
}

// ExecuteQuery parses query and runs it like ExecuteRequest. Every call
// compiles a new program.
func (e *Executor) ExecuteQuery(
	ctx context.Context,
	query string,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	document, err := language.ParseQuery(query)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: err.Error()}}}
	}
	return e.ExecuteRequest(ctx, document, operationName, variableValues, initialValue)
}

func locatedError(le *jit.LocatedError) GraphQLError {
	var path Path
	if len(le.Path) > 1 {
		path = Path(le.Path[1:])
	}
	return GraphQLError{Message: le.Err.Error(), Path: path}
}

func fatalError(err error) GraphQLError {
	ge := GraphQLError{Message: err.Error(), Extensions: map[string]any{"code": "INTERNAL"}}
	var exc *hostrt.Exception
	if errors.As(err, &exc) && exc.Fatal {
		ge.Extensions["code"] = "FATAL"
	}
	return ge
}

func getOperation(document *language.QueryDocument, operationName string) *language.OperationDefinition {
	if operationName == "" {
		if len(document.Operations) == 1 {
			return document.Operations[0]
		}
		return nil
	}
	return document.Operations.ForName(operationName)
}
