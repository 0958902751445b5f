package hostrt

import "fmt"

// ResolverFunc resolves one field from its parent value.
type ResolverFunc func(source, context any) (any, error)

// Resolvers is the table behind call_resolver. Ids are assigned in
// registration order and are stable for the table's lifetime. Registration
// happens at compile time; afterwards the table is read-only and may be
// shared by concurrent invocations.
type Resolvers struct {
	fns []ResolverFunc
}

// Register appends fn and returns its id.
func (r *Resolvers) Register(fn ResolverFunc) int32 {
	r.fns = append(r.fns, fn)
	return int32(len(r.fns) - 1)
}

// Len returns the number of registered resolvers.
func (r *Resolvers) Len() int {
	if r == nil {
		return 0
	}
	return len(r.fns)
}

func (r *Resolvers) get(id int32) (ResolverFunc, error) {
	if r == nil || id < 0 || int(id) >= len(r.fns) {
		return nil, fmt.Errorf("unknown resolver %d", id)
	}
	return r.fns[id], nil
}

func callResolver(fn ResolverFunc, source, context any) (v any, exc *Exception) {
	defer func() {
		if r := recover(); r != nil {
			v, exc = nil, panicException(r)
		}
	}()
	v, err := fn(source, context)
	if err != nil {
		return nil, NewException(err)
	}
	return v, nil
}
