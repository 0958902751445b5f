//go:build cgo
// +build cgo

package jit

import (
	"fmt"
	"time"

	"github.com/bytecodealliance/wasmtime-go"

	"github.com/hanpama/gqljit/internal/hostapi"
	"github.com/hanpama/gqljit/internal/hostrt"
)

// Program is a finalized unit. It is read-only and may be executed
// concurrently; every execution runs in its own store against its own heap.
type Program struct {
	unit    *Unit
	backend *Backend
	module  *wasmtime.Module
}

// heapHook observes the heap after an execution released everything it
// owns. Tests use it to check reference balance.
var heapHook func(*hostrt.Heap)

// Execute runs the program on root. Located errors are appended to sink in
// the order they occurred, also when the execution ends in a fatal failure.
// A fatal failure is returned as the error, as is a trap caused by a broken
// program.
func (p *Program) Execute(root, context any, sink *ErrorSink) (data any, err error) {
	start := time.Now()
	engine := p.backend.engine
	heap := hostrt.NewHeap(p.unit.Resolvers)
	store := wasmtime.NewStore(engine)
	linker := wasmtime.NewLinker(engine)
	if err := heap.Define(linker, store); err != nil {
		return nil, err
	}
	instance, err := linker.Instantiate(store, p.module)
	if err != nil {
		return nil, fmt.Errorf("jit: instantiate: %w", err)
	}
	entry := instance.GetFunc(store, hostapi.Export)
	if entry == nil {
		return nil, fmt.Errorf("jit: program exports no %q routine", hostapi.Export)
	}

	rootHandle := heap.Box(root)
	contextHandle := heap.Box(context)
	errorsHandle := heap.ListNew()

	out, callErr := entry.Call(store, rootHandle, contextHandle, errorsHandle)
	if callErr != nil {
		return nil, fmt.Errorf("jit: execute: %w", callErr)
	}
	result, _ := out.(int32)

	located, err := collectErrors(heap, errorsHandle)
	if err != nil {
		return nil, err
	}
	if sink != nil {
		sink.Append(located...)
	}

	if result == hostapi.Null {
		exc, err := heap.TakeException()
		if err != nil {
			return nil, fmt.Errorf("jit: routine failed without an exception: %w", err)
		}
		p.backend.opts.logger.Debug("execution aborted", "error", exc, "duration", time.Since(start))
		return nil, exc
	}
	data, err = heap.Unbox(result)
	if err != nil {
		return nil, err
	}
	for _, h := range []hostrt.Handle{result, errorsHandle, contextHandle, rootHandle} {
		if err := heap.DecRef(h); err != nil {
			return nil, err
		}
	}
	if heapHook != nil {
		heapHook(heap)
	}
	p.backend.opts.logger.Debug("execution finished",
		"errors", len(located),
		"duration", time.Since(start),
	)
	return data, nil
}

func collectErrors(heap *hostrt.Heap, list hostrt.Handle) ([]*LocatedError, error) {
	items, err := heap.Items(list)
	if err != nil {
		return nil, err
	}
	out := make([]*LocatedError, 0, len(items))
	for _, item := range items {
		v, err := heap.Value(item)
		if err != nil {
			return nil, err
		}
		le, ok := v.(*hostrt.LocatedError)
		if !ok {
			return nil, fmt.Errorf("jit: error list holds %T", v)
		}
		out = append(out, le)
	}
	return out, nil
}
