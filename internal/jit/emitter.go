package jit

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hanpama/gqljit/internal/hostapi"
)

const pageSize = 65536

// dataPool collects the constant strings of a module into one data segment.
// Identical strings share storage.
type dataPool struct {
	buf     []byte
	offsets map[string]int32
}

func newDataPool() *dataPool {
	return &dataPool{offsets: make(map[string]int32)}
}

func (p *dataPool) intern(s string) (ptr, length int32) {
	if off, ok := p.offsets[s]; ok {
		return off, int32(len(s))
	}
	off := int32(len(p.buf))
	p.buf = append(p.buf, s...)
	p.offsets[s] = off
	return off, int32(len(s))
}

func (p *dataPool) pages() int {
	n := (len(p.buf) + pageSize - 1) / pageSize
	if n < 1 {
		n = 1
	}
	return n
}

// literal renders the pool as a WAT string literal.
func (p *dataPool) literal() string {
	var b strings.Builder
	b.WriteByte('"')
	for _, c := range p.buf {
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "\\%02x", c)
	}
	b.WriteByte('"')
	return b.String()
}

// operand is a single instruction that pushes one i32 (or i64) value.
type operand string

func local(name string) operand { return operand("local.get " + name) }
func i32(v int32) operand       { return operand(fmt.Sprintf("i32.const %d", v)) }

type scope struct {
	label string
	base  int
}

// function builds the body of one wasm function in linear instruction form.
//
// It tracks which locals hold a handle the function owns. Every early exit
// goes through ret or breakOut, which release the owned handles before
// leaving, so no exit path can leak or double-release a reference.
type function struct {
	name   string
	params []string
	export string
	locals []string
	lines  []string
	depth  int

	owned      []string
	scopes     []scope
	terminated bool
	tmp        int
	errs       []error
}

func newFunction(name string, params ...string) *function {
	return &function{name: name, params: params, depth: 1}
}

func (f *function) fail(format string, args ...any) {
	f.errs = append(f.errs, fmt.Errorf("%s: %s", f.name, fmt.Sprintf(format, args...)))
}

func (f *function) emit(format string, args ...any) {
	f.lines = append(f.lines, strings.Repeat("  ", f.depth)+fmt.Sprintf(format, args...))
}

func (f *function) push(ops ...operand) {
	for _, op := range ops {
		f.emit("%s", op)
	}
}

func (f *function) local(name string) string {
	if !slices.Contains(f.locals, name) {
		f.locals = append(f.locals, name)
	}
	return name
}

// temp declares a fresh local.
func (f *function) temp(prefix string) string {
	f.tmp++
	return f.local(fmt.Sprintf("$%s%d", prefix, f.tmp))
}

func (f *function) own(name string) {
	if slices.Contains(f.owned, name) {
		f.fail("%s is already owned", name)
		return
	}
	f.owned = append(f.owned, name)
}

// disown forgets name without releasing it, after its reference was
// transferred.
func (f *function) disown(name string) {
	i := slices.Index(f.owned, name)
	if i < 0 {
		f.fail("%s is not owned", name)
		return
	}
	f.owned = slices.Delete(f.owned, i, i+1)
}

// release drops the reference held in name.
func (f *function) release(name string) {
	f.push(local(name))
	f.emit("call %s", hostapi.MustLookup(hostapi.DecRef).Symbol())
	f.disown(name)
}

func (f *function) releaseAll(names []string, keep string) {
	for i := len(names) - 1; i >= 0; i-- {
		if names[i] == keep {
			continue
		}
		f.push(local(names[i]))
		f.emit("call %s", hostapi.MustLookup(hostapi.DecRef).Symbol())
	}
}

// ret returns value after releasing every owned handle except keep, whose
// reference is handed to the caller.
func (f *function) ret(value operand, keep string) {
	f.releaseAll(f.owned, keep)
	f.push(value)
	f.emit("return")
	f.terminated = true
}

// host calls a primitive and leaves its result in dst (or on the stack when
// dst is empty). Fallible primitives are checked against their failure
// sentinel; on failure the function returns Null.
func (f *function) host(name, dst string, args ...operand) {
	f.hostOr(name, dst, func() { f.ret(i32(hostapi.Null), "") }, args...)
}

// hostOr is host with a custom failure exit. onFail must terminate.
func (f *function) hostOr(name, dst string, onFail func(), args ...operand) {
	p := hostapi.MustLookup(name)
	f.push(args...)
	f.emit("call %s", p.Symbol())
	if !p.Fallible {
		if dst != "" {
			f.emit("local.set %s", dst)
		}
		return
	}
	if dst != "" {
		f.emit("local.tee %s", dst)
	} else if p.Failure == hostapi.Null {
		f.fail("result of %s must be kept", name)
	}
	if p.Failure == hostapi.Null {
		f.emit("i32.eqz")
	} else {
		f.emit("i32.const %d", p.Failure)
		f.emit("i32.eq")
	}
	f.branch(onFail)
}

// hostUnchecked calls a fallible primitive without checking its result; the
// caller inspects dst itself.
func (f *function) hostUnchecked(name, dst string, args ...operand) {
	p := hostapi.MustLookup(name)
	f.push(args...)
	f.emit("call %s", p.Symbol())
	f.emit("local.set %s", dst)
}

// branch emits a conditional on the i32 at the top of the stack. body must
// end in ret or breakOut; ownership changes inside it do not leak into the
// fall-through path.
func (f *function) branch(body func()) {
	f.emit("if")
	f.depth++
	saved := slices.Clone(f.owned)
	f.terminated = false
	body()
	if !f.terminated {
		f.fail("conditional branch falls through")
	}
	f.owned = saved
	f.terminated = false
	f.depth--
	f.emit("end")
}

// ifElse emits a two-way conditional whose arms must not change ownership.
func (f *function) ifElse(then, els func()) {
	before := slices.Clone(f.owned)
	f.emit("if")
	f.depth++
	then()
	f.depth--
	f.emit("else")
	f.depth++
	els()
	f.depth--
	f.emit("end")
	if !slices.Equal(before, f.owned) {
		f.fail("conditional arms changed ownership")
	}
}

// enter opens a block that breakOut leaves.
func (f *function) enter(label string) {
	f.emit("block %s", label)
	f.depth++
	f.scopes = append(f.scopes, scope{label: label, base: len(f.owned)})
}

// breakOut releases what was acquired inside the innermost block and jumps
// to its end.
func (f *function) breakOut() {
	s := f.scopes[len(f.scopes)-1]
	f.releaseAll(f.owned[s.base:], "")
	f.emit("br %s", s.label)
	f.terminated = true
}

// leave closes the innermost block. Handles acquired inside it must have been
// released on every path reaching its end.
func (f *function) leave() {
	s := f.scopes[len(f.scopes)-1]
	f.scopes = f.scopes[:len(f.scopes)-1]
	if len(f.owned) != s.base {
		f.fail("block %s ends owning %v", s.label, f.owned[s.base:])
		f.owned = f.owned[:s.base]
	}
	f.depth--
	f.emit("end")
}

func (f *function) render(b *strings.Builder) {
	fmt.Fprintf(b, "  (func %s", f.name)
	if f.export != "" {
		fmt.Fprintf(b, " (export %q)", f.export)
	}
	for _, p := range f.params {
		fmt.Fprintf(b, " (param %s i32)", p)
	}
	b.WriteString(" (result i32)\n")
	for _, l := range f.locals {
		fmt.Fprintf(b, "    (local %s i32)\n", l)
	}
	for _, l := range f.lines {
		b.WriteString("  ")
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString("  )\n")
}

// renderModule assembles the imports, memory, constant data and functions
// into one module.
func renderModule(data *dataPool, funcs []*function) string {
	var b strings.Builder
	b.WriteString("(module\n")
	for _, p := range hostapi.Primitives {
		b.WriteString("  ")
		b.WriteString(p.Import())
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "  (memory (export %q) %d)\n", hostapi.MemoryExport, data.pages())
	if len(data.buf) > 0 {
		fmt.Fprintf(&b, "  (data (i32.const 0) %s)\n", data.literal())
	}
	for _, f := range funcs {
		f.render(&b)
	}
	b.WriteString(")\n")
	return b.String()
}
