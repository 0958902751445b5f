package jit

import "github.com/hanpama/gqljit/internal/hostapi"

const defaultResolverName = "$default_field_resolver"

// emitDefaultResolver builds the routine shared by every field without a
// bound resolver:
//
//	(source, name_ptr, name_len, context, kwargs) -> value
//
// It looks the name up as a key when source supports keyed lookup and as an
// attribute otherwise. A miss resolves to None. A callable value is invoked
// with (context,) and kwargs and replaced by its result; a failing call
// yields the exception as a value so the call site classifies it.
func emitDefaultResolver() *function {
	f := newFunction(defaultResolverName, "$source", "$name_ptr", "$name_len", "$context", "$kwargs")
	value := f.local("$value")
	args := f.local("$args")
	out := f.local("$out")
	key := []operand{local("$source"), local("$name_ptr"), local("$name_len")}

	f.host(hostapi.MappingCheck, "", local("$source"))
	f.ifElse(
		func() { f.hostUnchecked(hostapi.MappingGetItem, value, key...) },
		func() { f.hostUnchecked(hostapi.GetAttr, value, key...) },
	)
	f.push(local(value))
	f.emit("i32.eqz")
	f.branch(func() {
		f.host(hostapi.ErrClear, "")
		f.ret(i32(hostapi.None), "")
	})
	f.own(value)

	f.push(local(value), i32(hostapi.None))
	f.emit("i32.eq")
	f.branch(func() { f.ret(local(value), value) })

	f.host(hostapi.CallableCheck, "", local(value))
	f.emit("i32.eqz")
	f.branch(func() { f.ret(local(value), value) })

	f.host(hostapi.TupleNew, args, i32(1))
	f.own(args)
	f.host(hostapi.IncRef, "", local("$context"))
	f.host(hostapi.TupleSetItem, "", local(args), i32(0), local("$context"))
	f.hostOr(hostapi.Call, out, func() {
		f.ret(operand("call "+hostapi.MustLookup(hostapi.ErrFetch).Symbol()), "")
	}, local(value), local(args), local("$kwargs"))
	f.ret(local(out), "")
	return f
}
