// Package hostapi declares the host runtime primitives that generated
// programs import.
//
// Generated code never sees host values directly. It holds i32 handles into
// a reference-counted heap owned by the embedding runtime and manipulates
// them exclusively through the primitives listed in Primitives. This package
// only declares them: names, wasm signatures, which ones can fail and what
// their failure sentinel is. The embedding side (package hostrt) implements
// them.
//
// # Ownership
//
// Primitives that return a handle return a new reference unless stated
// otherwise; the caller must release it exactly once with decref. Arguments
// are borrowed, except for tuple_set_item (steals value) and err_restore
// (steals all three arguments).
//
// # Failure
//
// A fallible primitive signals failure by returning its sentinel (Null for
// handle results, -1 for status results) after recording an exception in the
// host's active exception state. Generated code must check every fallible
// call, release what it owns and return Null to its caller.
package hostapi

import (
	"fmt"
	"strings"
)

// Handle identifies a dynamic value in the host heap.
type Handle = int32

const (
	// Null is the failure sentinel. It never names a value.
	Null Handle = 0
	// None is the absence value. It has static identity, so generated code
	// compares against it with i32.eq, and it is immortal.
	None Handle = 1
)

// Exception classes accepted by exc_matches.
const (
	// ClassBaseException matches every exception value.
	ClassBaseException int32 = 1
	// ClassException matches recoverable exceptions only.
	ClassException int32 = 2
)

// Module is the wasm import module name of every primitive.
const Module = "host"

// Export is the name of the entry routine exported by a compiled program.
const Export = "execute"

// MemoryExport is the name under which programs export their linear memory.
const MemoryExport = "memory"

// ValType is a wasm value type.
type ValType string

const (
	I32 ValType = "i32"
	I64 ValType = "i64"
)

// Primitive names.
const (
	MappingCheck          = "mapping_check"
	MappingGetItem        = "mapping_get_item"
	GetAttr               = "getattr"
	CallableCheck         = "callable_check"
	Call                  = "call"
	CallResolver          = "call_resolver"
	DictNew               = "dict_new"
	DictSetItem           = "dict_set_item"
	TupleNew              = "tuple_new"
	TupleSetItem          = "tuple_set_item"
	ListAppend            = "list_append"
	StrFromUTF8           = "str_from_utf8"
	LongFromI64           = "long_from_i64"
	IncRef                = "incref"
	DecRef                = "decref"
	ExcMatches            = "exc_matches"
	ObjectType            = "object_type"
	ExceptionGetTraceback = "exception_get_traceback"
	ErrRestore            = "err_restore"
	ErrFetch              = "err_fetch"
	ErrClear              = "err_clear"
	LocatedError          = "located_error"
)

// Primitive describes one imported host function.
type Primitive struct {
	Name    string
	Params  []ValType
	Results []ValType
	// Fallible primitives report failure by returning Failure.
	Fallible bool
	Failure  int32
}

// Symbol is the WAT identifier used for the primitive inside a module.
func (p Primitive) Symbol() string { return "$" + p.Name }

// Import renders the WAT import declaration of the primitive.
func (p Primitive) Import() string {
	var b strings.Builder
	fmt.Fprintf(&b, "(import %q %q (func %s", Module, p.Name, p.Symbol())
	if len(p.Params) > 0 {
		b.WriteString(" (param")
		for _, t := range p.Params {
			b.WriteString(" " + string(t))
		}
		b.WriteString(")")
	}
	if len(p.Results) > 0 {
		b.WriteString(" (result")
		for _, t := range p.Results {
			b.WriteString(" " + string(t))
		}
		b.WriteString(")")
	}
	b.WriteString("))")
	return b.String()
}

func handleFn(name string, params ...ValType) Primitive {
	return Primitive{Name: name, Params: params, Results: []ValType{I32}, Fallible: true, Failure: Null}
}

func statusFn(name string, params ...ValType) Primitive {
	return Primitive{Name: name, Params: params, Results: []ValType{I32}, Fallible: true, Failure: -1}
}

func predicateFn(name string, params ...ValType) Primitive {
	return Primitive{Name: name, Params: params, Results: []ValType{I32}}
}

func voidFn(name string, params ...ValType) Primitive {
	return Primitive{Name: name, Params: params}
}

// Primitives is the full binding table, in import order.
var Primitives = []Primitive{
	predicateFn(MappingCheck, I32),
	handleFn(MappingGetItem, I32, I32, I32),
	handleFn(GetAttr, I32, I32, I32),
	predicateFn(CallableCheck, I32),
	handleFn(Call, I32, I32, I32),
	handleFn(CallResolver, I32, I32, I32),
	handleFn(DictNew),
	statusFn(DictSetItem, I32, I32, I32, I32),
	handleFn(TupleNew, I32),
	statusFn(TupleSetItem, I32, I32, I32),
	statusFn(ListAppend, I32, I32),
	handleFn(StrFromUTF8, I32, I32),
	handleFn(LongFromI64, I64),
	voidFn(IncRef, I32),
	voidFn(DecRef, I32),
	predicateFn(ExcMatches, I32, I32),
	predicateFn(ObjectType, I32),
	predicateFn(ExceptionGetTraceback, I32),
	voidFn(ErrRestore, I32, I32, I32),
	handleFn(ErrFetch),
	voidFn(ErrClear),
	handleFn(LocatedError, I32, I32, I32),
}

var byName = func() map[string]Primitive {
	m := make(map[string]Primitive, len(Primitives))
	for _, p := range Primitives {
		m[p.Name] = p
	}
	return m
}()

// Lookup returns the primitive declared under name.
func Lookup(name string) (Primitive, bool) {
	p, ok := byName[name]
	return p, ok
}

// MustLookup is like Lookup but panics for undeclared names. It is meant for
// code generators, where an unknown primitive is a programming error.
func MustLookup(name string) Primitive {
	p, ok := byName[name]
	if !ok {
		panic(fmt.Sprintf("hostapi: undeclared primitive %q", name))
	}
	return p
}
