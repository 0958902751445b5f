//go:build cgo
// +build cgo

package jit

import (
	"fmt"
	"sync"
	"time"

	"github.com/bytecodealliance/wasmtime-go"

	"github.com/hanpama/gqljit/internal/selection"
)

// Backend finalizes generated units into executable programs. Programs
// compiled by one backend share its engine.
type Backend struct {
	opts   options
	engine *wasmtime.Engine

	mu     sync.Mutex
	closed bool
}

// NewBackend creates a backend with its own wasm engine.
func NewBackend(opts ...Option) (*Backend, error) {
	return &Backend{opts: newOptions(opts), engine: wasmtime.NewEngine()}, nil
}

// Compile generates and finalizes the program for root. A module that fails
// to assemble or validate is reported here and never reaches execution.
func (b *Backend) Compile(root *selection.ObjectField) (*Program, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBackendClosed
	}

	start := time.Now()
	unit, err := Generate(root)
	if err != nil {
		return nil, err
	}
	wasm, err := wasmtime.Wat2Wasm(unit.WAT)
	if err != nil {
		return nil, fmt.Errorf("jit: assemble: %w", err)
	}
	if err := wasmtime.ModuleValidate(b.engine, wasm); err != nil {
		return nil, fmt.Errorf("jit: validate: %w", err)
	}
	module, err := wasmtime.NewModule(b.engine, wasm)
	if err != nil {
		return nil, fmt.Errorf("jit: finalize: %w", err)
	}
	b.opts.logger.Debug("program compiled",
		"routines", len(unit.Routines),
		"resolvers", unit.Resolvers.Len(),
		"wasm_bytes", len(wasm),
		"duration", time.Since(start),
	)
	return &Program{unit: unit, backend: b, module: module}, nil
}

// Close marks the backend closed. Programs compiled earlier stay usable.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBackendClosed
	}
	b.closed = true
	return nil
}
