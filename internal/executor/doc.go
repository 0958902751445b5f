// Package executor runs GraphQL operations through compiled programs.
//
// # Preparation
//
// For each request the executor
//  1. chooses the operation (by name, or the only one when unnamed),
//  2. coerces the provided variables against the operation's variable
//     definitions, applying defaults,
//  3. determines the root object type (Query or Mutation),
//  4. builds a selection tree from the root selection set: fragments and
//     inline fragments are merged, @skip and @include are evaluated, aliases
//     become the keys of the result,
//  5. compiles the tree into a program with the jit backend.
//
// Steps 1 to 4 stop the request with errors and no data. A tree that cannot
// be compiled is a request error as well.
//
// # Execution
//
// The program is run with the initial value as root and the request context
// as execution context, so resolvers receive the context.Context the
// request was served with. Recoverable resolver failures come back as
// located errors, the affected fields nulled out up to the nearest nullable
// ancestor. A fatal failure (an error wrapping hostrt.ErrFatal, context
// cancellation, or a panic) aborts the run; the response then carries no
// data and a single error.
//
// Error paths in responses are relative to the operation: the leading root
// segment of a located error's path is dropped.
package executor
