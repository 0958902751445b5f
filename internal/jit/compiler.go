package jit

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/hanpama/gqljit/internal/hostapi"
	"github.com/hanpama/gqljit/internal/hostrt"
	"github.com/hanpama/gqljit/internal/selection"
)

const entryName = "$execute"

// Unit is the generated, not yet finalized, form of a program.
type Unit struct {
	// WAT is the module text.
	WAT string
	// Routines lists the node routines in emission order, children before
	// their parents; the root routine comes last.
	Routines []string
	// DefaultResolver reports whether the shared default resolver was
	// emitted.
	DefaultResolver bool
	// Resolvers backs call_resolver for this unit.
	Resolvers *hostrt.Resolvers
}

// Generate lowers the tree rooted at root into a module: one routine per
// object field, named by its alias path, the shared default resolver when
// some field needs it, and an exported entry that resolves the root field and
// runs its routine.
func Generate(root *selection.ObjectField) (*Unit, error) {
	if err := selection.Validate(root); err != nil {
		return nil, fmt.Errorf("invalid selection tree: %w", err)
	}
	c := &compiler{
		data:      newDataPool(),
		resolvers: &hostrt.Resolvers{},
		names:     make(map[string]bool),
	}
	rootRoutine := c.object(root, []string{root.FieldName})
	c.entry(root, rootRoutine)

	funcs := c.funcs
	if c.usesDefault {
		funcs = append([]*function{emitDefaultResolver()}, funcs...)
	}
	var result *multierror.Error
	for _, f := range funcs {
		for _, err := range f.errs {
			result = multierror.Append(result, err)
		}
	}
	result = multierror.Append(result, c.errs...)
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return &Unit{
		WAT:             renderModule(c.data, funcs),
		Routines:        c.routines,
		DefaultResolver: c.usesDefault,
		Resolvers:       c.resolvers,
	}, nil
}

type compiler struct {
	data        *dataPool
	resolvers   *hostrt.Resolvers
	funcs       []*function
	routines    []string
	names       map[string]bool
	usesDefault bool
	errs        []error
}

// routineName derives a wasm identifier from an alias path. Characters
// outside [A-Za-z0-9_] are escaped so distinct paths keep distinct names.
func routineName(path []string) string {
	var b strings.Builder
	b.WriteString(entryName)
	for _, seg := range path {
		b.WriteByte('.')
		for _, r := range seg {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
				b.WriteRune(r)
			default:
				fmt.Fprintf(&b, "~%x~", r)
			}
		}
	}
	return b.String()
}

func extend(path []string, seg string) []string {
	return append(path[:len(path):len(path)], seg)
}

func (c *compiler) stringConst(s string) (operand, operand) {
	ptr, n := c.data.intern(s)
	return i32(ptr), i32(n)
}

// object emits the routine of field and, before it, the routines of its
// object children. It returns the routine's name.
func (c *compiler) object(field *selection.ObjectField, path []string) string {
	name := routineName(path)
	if c.names[name] {
		c.errs = append(c.errs, fmt.Errorf("duplicate routine %s", name))
	}
	c.names[name] = true

	entries := field.Selection.Entries()
	children := make(map[string]string)
	for _, e := range entries {
		if of, ok := e.Field.(*selection.ObjectField); ok {
			children[e.Alias] = c.object(of, extend(path, e.Alias))
		}
	}

	f := newFunction(name, "$source", "$context", "$errors")
	result := f.local("$result")
	f.host(hostapi.DictNew, result)
	f.own(result)
	for i, e := range entries {
		f.enter(fmt.Sprintf("$field_%d", i))
		c.child(f, result, e, path, children[e.Alias])
		f.leave()
	}
	f.ret(local(result), result)

	c.funcs = append(c.funcs, f)
	c.routines = append(c.routines, name)
	return name
}

// child emits the resolution of one selection entry into result.
func (c *compiler) child(f *function, result string, e selection.Entry, path []string, routine string) {
	field := e.Field
	nullable := field.Nullable()
	aliasPtr, aliasLen := c.stringConst(e.Alias)
	storeNone := func() {
		f.host(hostapi.DictSetItem, "", local(result), aliasPtr, aliasLen, i32(hostapi.None))
	}

	val := f.temp("val")
	c.resolve(f, field, val)
	c.classify(f, val, extend(path, e.Alias), func() {
		if nullable {
			storeNone()
			f.breakOut()
			return
		}
		f.ret(i32(hostapi.None), "")
	})

	if routine == "" {
		f.host(hostapi.DictSetItem, "", local(result), aliasPtr, aliasLen, local(val))
		f.release(val)
		return
	}

	// A null object value is a null child result.
	f.push(local(val), i32(hostapi.None))
	f.emit("i32.eq")
	f.branch(func() {
		if nullable {
			storeNone()
			f.breakOut()
			return
		}
		f.ret(i32(hostapi.None), "")
	})

	inner := f.temp("inner")
	f.push(local(val), local("$context"), local("$errors"))
	f.emit("call %s", routine)
	f.emit("local.set %s", inner)
	f.release(val)
	f.push(local(inner))
	f.emit("i32.eqz")
	f.branch(func() { f.ret(i32(hostapi.Null), "") })
	f.own(inner)

	if !nullable {
		f.push(local(inner), i32(hostapi.None))
		f.emit("i32.eq")
		f.branch(func() { f.ret(i32(hostapi.None), "") })
	}
	f.host(hostapi.DictSetItem, "", local(result), aliasPtr, aliasLen, local(inner))
	f.release(inner)
}

// resolve leaves an owned reference to the raw value of field in dst.
func (c *compiler) resolve(f *function, field selection.Field, dst string) {
	if r := field.Resolver(); r != nil {
		id := c.resolvers.Register(hostrt.ResolverFunc(r))
		f.host(hostapi.CallResolver, dst, i32(id), local("$source"), local("$context"))
	} else {
		c.usesDefault = true
		ptr, n := c.stringConst(field.Name())
		f.push(local("$source"), ptr, n, local("$context"), i32(hostapi.None))
		f.emit("call %s", defaultResolverName)
		f.emit("local.tee %s", dst)
		f.emit("i32.eqz")
		f.branch(func() { f.ret(i32(hostapi.Null), "") })
	}
	f.own(dst)
}

// classify checks whether the owned value in val is an exception. Fatal
// exceptions are moved into the active exception state and the routine
// fails. Recoverable ones are recorded as located errors at path, val is
// released and absorb decides how the routine goes on.
func (c *compiler) classify(f *function, val string, path []string, absorb func()) {
	f.host(hostapi.ExcMatches, "", local(val), i32(hostapi.ClassBaseException))
	f.branch(func() {
		f.host(hostapi.ExcMatches, "", local(val), i32(hostapi.ClassException))
		f.emit("i32.eqz")
		f.branch(func() { c.propagate(f, val) })
		c.locate(f, val, path)
		absorb()
	})
}

// propagate restores the exception in val as the active exception state and
// fails the routine.
func (c *compiler) propagate(f *function, val string) {
	typ := f.temp("type")
	tb := f.temp("tb")
	f.host(hostapi.ObjectType, typ, local(val))
	f.own(typ)
	f.host(hostapi.ExceptionGetTraceback, tb, local(val))
	f.own(tb)
	f.host(hostapi.ErrRestore, "", local(typ), local(val), local(tb))
	f.disown(typ)
	f.disown(val)
	f.disown(tb)
	f.ret(i32(hostapi.Null), "")
}

// locate appends a located error for the exception in val to the error list
// and releases val.
func (c *compiler) locate(f *function, val string, path []string) {
	tuple := f.temp("path")
	f.host(hostapi.TupleNew, tuple, i32(int32(len(path))))
	f.own(tuple)
	seg := f.temp("seg")
	for i, s := range path {
		ptr, n := c.stringConst(s)
		f.host(hostapi.StrFromUTF8, seg, ptr, n)
		f.host(hostapi.TupleSetItem, "", local(tuple), i32(int32(i)), local(seg))
	}
	located := f.temp("located")
	f.host(hostapi.LocatedError, located, local(val), i32(hostapi.None), local(tuple))
	f.own(located)
	f.release(val)
	f.release(tuple)
	f.host(hostapi.ListAppend, "", local("$errors"), local(located))
	f.release(located)
}

// entry emits the exported routine. It resolves the root field against the
// root value and runs the root routine on the outcome.
func (c *compiler) entry(root *selection.ObjectField, routine string) {
	f := newFunction(entryName, "$root", "$context", "$errors")
	f.export = hostapi.Export
	value := f.local("$value")
	out := f.local("$out")

	if r := root.Resolver(); r != nil {
		id := c.resolvers.Register(hostrt.ResolverFunc(r))
		f.host(hostapi.CallResolver, value, i32(id), local("$root"), local("$context"))
		f.own(value)
		c.classify(f, value, []string{root.FieldName}, func() { f.ret(i32(hostapi.None), "") })
	} else {
		f.host(hostapi.IncRef, "", local("$root"))
		f.push(local("$root"))
		f.emit("local.set %s", value)
		f.own(value)
	}

	f.push(local(value), i32(hostapi.None))
	f.emit("i32.eq")
	f.branch(func() { f.ret(i32(hostapi.None), "") })

	f.push(local(value), local("$context"), local("$errors"))
	f.emit("call %s", routine)
	f.emit("local.set %s", out)
	f.release(value)
	f.ret(local(out), "")
	c.funcs = append(c.funcs, f)
}
