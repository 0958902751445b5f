// Package jit compiles selection trees into wasm programs and executes them
// against a host heap.
//
// A program has one routine per object field of the tree. A routine resolves
// the fields of its selection against a source value, classifies each result
// and assembles a record. Recoverable resolver failures become located errors
// and null out the nearest nullable ancestor; fatal failures abort the whole
// execution and surface as the error of Execute.
package jit

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/hanpama/gqljit/internal/hostrt"
)

var (
	// ErrNoJIT is returned when the binary was built without cgo and the
	// wasm engine is unavailable.
	ErrNoJIT = errors.New("jit: wasm engine unavailable (built without cgo)")
	// ErrBackendClosed is returned by a backend after Close.
	ErrBackendClosed = errors.New("jit: backend closed")
)

// LocatedError is a recoverable field failure together with the alias path of
// the field that produced it.
type LocatedError = hostrt.LocatedError

// Result is the outcome of Run.
type Result struct {
	Data   any
	Errors []*LocatedError
}

// ErrorSink collects located errors. It is safe for concurrent use.
type ErrorSink struct {
	mu   sync.Mutex
	errs []*LocatedError
}

// Append adds errs in order.
func (s *ErrorSink) Append(errs ...*LocatedError) {
	s.mu.Lock()
	s.errs = append(s.errs, errs...)
	s.mu.Unlock()
}

// Errors returns a copy of the collected errors.
func (s *ErrorSink) Errors() []*LocatedError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*LocatedError(nil), s.errs...)
}

func (s *ErrorSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.errs)
}

type options struct {
	logger *slog.Logger
}

// Option configures a Backend.
type Option func(*options)

// WithLogger sets the logger used for compile and execution diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
