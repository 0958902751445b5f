package hostrt

import "reflect"

// Record is an insertion-ordered string-keyed container of handles. Result
// objects assembled by generated code are records.
type Record struct {
	keys  []string
	items map[string]Handle
}

func (r *Record) lookupHandle(key string) (Handle, bool) {
	v, ok := r.items[key]
	return v, ok
}

// set stores v under key and returns the handle it replaced, if any.
func (r *Record) set(key string, v Handle) (Handle, bool) {
	old, ok := r.items[key]
	if !ok {
		r.keys = append(r.keys, key)
	}
	r.items[key] = v
	return old, ok
}

// Tuple is a fixed-size positional container. Unset positions hold Null.
type Tuple struct {
	items []Handle
}

// List is a growable positional container.
type List struct {
	items []Handle
}

// ExceptionType is the value object_type returns for exceptions.
type ExceptionType struct {
	Fatal bool
}

func (t ExceptionType) String() string {
	if t.Fatal {
		return "FatalError"
	}
	return "Error"
}

func children(v any) []Handle {
	switch v := v.(type) {
	case *Record:
		out := make([]Handle, 0, len(v.keys))
		for _, k := range v.keys {
			out = append(out, v.items[k])
		}
		return out
	case *Tuple:
		return v.items
	case *List:
		return v.items
	}
	return nil
}

func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
