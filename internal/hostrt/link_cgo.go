//go:build cgo
// +build cgo

package hostrt

import (
	"errors"
	"fmt"

	"github.com/bytecodealliance/wasmtime-go"

	"github.com/hanpama/gqljit/internal/hostapi"
)

// Define registers every hostapi primitive on linker, backed by h. Misuse of
// the heap by generated code (stale handles, out of bounds strings) traps.
func (h *Heap) Define(linker *wasmtime.Linker, store *wasmtime.Store) error {
	defs := map[string]interface{}{
		hostapi.MappingCheck: func(v int32) int32 {
			return h.MappingCheck(v)
		},
		hostapi.MappingGetItem: func(caller *wasmtime.Caller, v, ptr, length int32) int32 {
			return must(h.MappingGetItem(v, must(readString(caller, ptr, length))))
		},
		hostapi.GetAttr: func(caller *wasmtime.Caller, v, ptr, length int32) int32 {
			return must(h.GetAttr(v, must(readString(caller, ptr, length))))
		},
		hostapi.CallableCheck: func(v int32) int32 {
			return h.CallableCheck(v)
		},
		hostapi.Call: func(callable, args, kwargs int32) int32 {
			return must(h.Call(callable, args, kwargs))
		},
		hostapi.CallResolver: func(id, source, context int32) int32 {
			return must(h.CallResolver(id, source, context))
		},
		hostapi.DictNew: func() int32 {
			return h.DictNew()
		},
		hostapi.DictSetItem: func(caller *wasmtime.Caller, dict, ptr, length, value int32) int32 {
			return must(h.DictSetItem(dict, must(readString(caller, ptr, length)), value))
		},
		hostapi.TupleNew: func(n int32) int32 {
			return must(h.TupleNew(n))
		},
		hostapi.TupleSetItem: func(tuple, i, value int32) int32 {
			return must(h.TupleSetItem(tuple, i, value))
		},
		hostapi.ListAppend: func(list, value int32) int32 {
			return must(h.ListAppend(list, value))
		},
		hostapi.StrFromUTF8: func(caller *wasmtime.Caller, ptr, length int32) int32 {
			return h.StrFromUTF8(must(readString(caller, ptr, length)))
		},
		hostapi.LongFromI64: func(v int64) int32 {
			return h.LongFromI64(v)
		},
		hostapi.IncRef: func(v int32) {
			must0(h.IncRef(v))
		},
		hostapi.DecRef: func(v int32) {
			must0(h.DecRef(v))
		},
		hostapi.ExcMatches: func(v, class int32) int32 {
			return h.ExcMatches(v, class)
		},
		hostapi.ObjectType: func(v int32) int32 {
			return must(h.ObjectType(v))
		},
		hostapi.ExceptionGetTraceback: func(v int32) int32 {
			return must(h.ExceptionGetTraceback(v))
		},
		hostapi.ErrRestore: func(typ, value, trace int32) {
			h.ErrRestore(typ, value, trace)
		},
		hostapi.ErrFetch: func() int32 {
			return must(h.ErrFetch())
		},
		hostapi.ErrClear: func() {
			h.ErrClear()
		},
		hostapi.LocatedError: func(exc, trace, path int32) int32 {
			return must(h.NewLocatedError(exc, trace, path))
		},
	}
	for _, p := range hostapi.Primitives {
		fn, ok := defs[p.Name]
		if !ok {
			return fmt.Errorf("no host definition for %s", p.Name)
		}
		if err := linker.DefineFunc(store, hostapi.Module, p.Name, fn); err != nil {
			return fmt.Errorf("define %s: %w", p.Name, err)
		}
	}
	return nil
}

func readString(caller *wasmtime.Caller, ptr, length int32) (string, error) {
	ext := caller.GetExport(hostapi.MemoryExport)
	if ext == nil {
		return "", errors.New("memory not found")
	}
	memory := ext.Memory()
	if memory == nil {
		return "", errors.New("memory not found")
	}
	data := memory.UnsafeData(caller)
	start := int(ptr)
	end := start + int(length)
	if start < 0 || length < 0 || end > len(data) {
		return "", errors.New("string out of bounds")
	}
	return string(data[start:end]), nil
}

func must[T any](value T, err error) T {
	if err != nil {
		panic(wasmtime.NewTrap(err.Error()))
	}
	return value
}

func must0(err error) {
	if err != nil {
		panic(wasmtime.NewTrap(err.Error()))
	}
}
