package hostrt

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Mapping is implemented by sources that support keyed lookup.
type Mapping interface {
	Lookup(key string) (any, bool)
}

// Attributer is implemented by sources that expose attributes without being
// structs.
type Attributer interface {
	Attr(name string) (any, bool)
}

// FieldTag is the struct tag consulted by attribute lookup.
const FieldTag = "graphql"

var kwargsType = reflect.TypeOf(map[string]any(nil))

func isMapping(v any) bool {
	switch v.(type) {
	case *Record, Mapping:
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String
}

// MappingCheck reports whether the value under handle supports keyed lookup.
func (h *Heap) MappingCheck(handle Handle) int32 {
	v, err := h.Value(handle)
	if err != nil || v == nil {
		return 0
	}
	if isMapping(v) {
		return 1
	}
	return 0
}

// MappingGetItem looks key up in the value under handle. A missing key raises
// a recoverable exception and yields Null.
func (h *Heap) MappingGetItem(handle Handle, key string) (Handle, error) {
	v, err := h.Value(handle)
	if err != nil {
		return Null, err
	}
	switch m := v.(type) {
	case *Record:
		item, ok := m.lookupHandle(key)
		if !ok {
			break
		}
		if err := h.IncRef(item); err != nil {
			return Null, err
		}
		return item, nil
	case Mapping:
		if item, ok := m.Lookup(key); ok {
			return h.Box(item), nil
		}
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
			h.raiseErr("%T does not support keyed lookup", v)
			return Null, nil
		}
		item := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
		if item.IsValid() {
			return h.Box(item.Interface()), nil
		}
	}
	h.raiseErr("key %q not found", key)
	return Null, nil
}

// GetAttr looks name up as an attribute of the value under handle: a struct
// field tagged with name, a field named name or its CamelCase form, or a
// method with either name. A missing attribute raises a recoverable
// exception and yields Null.
func (h *Heap) GetAttr(handle Handle, name string) (Handle, error) {
	v, err := h.Value(handle)
	if err != nil {
		return Null, err
	}
	if a, ok := v.(Attributer); ok {
		if item, ok := a.Attr(name); ok {
			return h.Box(item), nil
		}
	} else if item, ok := structAttr(v, name); ok {
		return h.Box(item), nil
	}
	h.raiseErr("%T has no attribute %q", v, name)
	return Null, nil
}

func structAttr(v any, name string) (any, bool) {
	if v == nil {
		return nil, false
	}
	camel := camelCase(name)
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct {
		if f, ok := structField(rv.Elem(), name, camel); ok {
			return f, true
		}
	} else if rv.Kind() == reflect.Struct {
		if f, ok := structField(rv, name, camel); ok {
			return f, true
		}
	}
	for _, n := range []string{name, camel} {
		if m := rv.MethodByName(n); m.IsValid() {
			return m.Interface(), true
		}
	}
	return nil, false
}

func structField(sv reflect.Value, name, camel string) (any, bool) {
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag, _, _ := strings.Cut(f.Tag.Get(FieldTag), ","); tag == name {
			return sv.Field(i).Interface(), true
		}
	}
	for _, n := range []string{name, camel} {
		if f, ok := st.FieldByName(n); ok && f.IsExported() {
			return sv.FieldByIndex(f.Index).Interface(), true
		}
	}
	return nil, false
}

// camelCase turns snake_case and lowerCamel names into exported Go names.
func camelCase(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CallableCheck reports whether the value under handle is a Go function.
func (h *Heap) CallableCheck(handle Handle) int32 {
	v, err := h.Value(handle)
	if err != nil || v == nil {
		return 0
	}
	if reflect.ValueOf(v).Kind() == reflect.Func {
		return 1
	}
	return 0
}

// Call invokes the function under callable with the tuple args and the
// keyword bag kwargs (a record, or None). A returned error, a call that does
// not fit the function's signature and a panic all raise; panics are fatal.
func (h *Heap) Call(callable, args, kwargs Handle) (Handle, error) {
	fn, err := h.Value(callable)
	if err != nil {
		return Null, err
	}
	argHandles, err := h.Items(args)
	if err != nil {
		return Null, err
	}
	positional := make([]any, len(argHandles))
	for i, a := range argHandles {
		if positional[i], err = h.Value(a); err != nil {
			return Null, err
		}
	}
	var kw map[string]any
	if kwargs != None {
		v, err := h.Unbox(kwargs)
		if err != nil {
			return Null, err
		}
		m, ok := v.(map[string]any)
		if !ok {
			return Null, errors.Errorf("keyword arguments must be a record, got %T", v)
		}
		kw = m
	}
	out, exc := invoke(fn, positional, kw)
	if exc != nil {
		h.raise(exc)
		return Null, nil
	}
	return h.Box(out), nil
}

// invoke calls fn by reflection. Trailing positional arguments the function
// does not declare are dropped, so plain getters such as func() string can be
// used where a context argument is passed. A final map[string]any parameter
// receives kwargs.
func invoke(fn any, args []any, kwargs map[string]any) (out any, exc *Exception) {
	defer func() {
		if r := recover(); r != nil {
			out, exc = nil, panicException(r)
		}
	}()
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, NewException(errors.Errorf("%T is not callable", fn))
	}
	if ft.IsVariadic() {
		return nil, NewException(errors.Errorf("variadic function %s is not supported", ft))
	}
	nin := ft.NumIn()
	takesKwargs := nin > 0 && ft.In(nin-1) == kwargsType && (nin > len(args) || kwargs != nil)
	if takesKwargs {
		nin--
	}
	if nin > len(args) {
		return nil, NewException(errors.Errorf("%s called with %d arguments", ft, len(args)))
	}
	in := make([]reflect.Value, 0, ft.NumIn())
	for i := 0; i < nin; i++ {
		av, err := argValue(args[i], ft.In(i))
		if err != nil {
			return nil, NewException(err)
		}
		in = append(in, av)
	}
	if takesKwargs {
		in = append(in, reflect.ValueOf(kwargs))
	}
	return results(ft, fv.Call(in))
}

func argValue(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, errors.Errorf("cannot pass null as %s", t)
	}
	av := reflect.ValueOf(arg)
	if av.Type().AssignableTo(t) {
		return av, nil
	}
	if av.Type().ConvertibleTo(t) {
		return av.Convert(t), nil
	}
	return reflect.Value{}, errors.Errorf("cannot pass %T as %s", arg, t)
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func results(ft reflect.Type, out []reflect.Value) (any, *Exception) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if ft.Out(0) == errorType {
			if err, _ := out[0].Interface().(error); err != nil {
				return nil, NewException(err)
			}
			return nil, nil
		}
		return out[0].Interface(), nil
	case 2:
		if ft.Out(1) != errorType {
			break
		}
		if err, _ := out[1].Interface().(error); err != nil {
			return nil, NewException(err)
		}
		return out[0].Interface(), nil
	}
	return nil, NewException(errors.Errorf("unsupported result signature %s", ft))
}
