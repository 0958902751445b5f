package hostrt

import "fmt"

// DictNew returns a new empty record.
func (h *Heap) DictNew() Handle {
	return h.Box(&Record{items: map[string]Handle{}})
}

// DictSetItem stores value under key in the record under dict. The value is
// borrowed: the record takes its own reference.
func (h *Heap) DictSetItem(dict Handle, key string, value Handle) (int32, error) {
	r, err := valueAs[*Record](h, dict)
	if err != nil {
		return -1, err
	}
	if err := h.IncRef(value); err != nil {
		return -1, err
	}
	if old, ok := r.set(key, value); ok {
		if err := h.DecRef(old); err != nil {
			return -1, err
		}
	}
	return 0, nil
}

// TupleNew returns a tuple of n unset positions.
func (h *Heap) TupleNew(n int32) (Handle, error) {
	if n < 0 {
		return Null, fmt.Errorf("negative tuple size %d", n)
	}
	return h.Box(&Tuple{items: make([]Handle, n)}), nil
}

// TupleSetItem stores value at position i. The reference to value is stolen,
// even on failure.
func (h *Heap) TupleSetItem(tuple Handle, i int32, value Handle) (int32, error) {
	t, err := valueAs[*Tuple](h, tuple)
	if err != nil {
		return -1, err
	}
	if i < 0 || int(i) >= len(t.items) {
		_ = h.DecRef(value)
		h.raiseErr("tuple index %d out of range", i)
		return -1, nil
	}
	old := t.items[i]
	t.items[i] = value
	if err := h.DecRef(old); err != nil {
		return -1, err
	}
	return 0, nil
}

// ListNew returns a new empty list.
func (h *Heap) ListNew() Handle {
	return h.Box(&List{})
}

// ListAppend appends value to the list under list. The value is borrowed.
func (h *Heap) ListAppend(list Handle, value Handle) (int32, error) {
	l, err := valueAs[*List](h, list)
	if err != nil {
		return -1, err
	}
	if err := h.IncRef(value); err != nil {
		return -1, err
	}
	l.items = append(l.items, value)
	return 0, nil
}

// StrFromUTF8 boxes s.
func (h *Heap) StrFromUTF8(s string) Handle {
	return h.Box(s)
}

// LongFromI64 boxes v as an int.
func (h *Heap) LongFromI64(v int64) Handle {
	return h.Box(int(v))
}

// CallResolver invokes the resolver registered under id with the values under
// source and context. Failures, including panics, come back as an exception
// value rather than a pending exception, so generated code classifies them
// like any other resolver result.
func (h *Heap) CallResolver(id int32, source, context Handle) (Handle, error) {
	fn, err := h.resolvers.get(id)
	if err != nil {
		return Null, err
	}
	src, err := h.Value(source)
	if err != nil {
		return Null, err
	}
	ctx, err := h.Value(context)
	if err != nil {
		return Null, err
	}
	v, exc := callResolver(fn, src, ctx)
	if exc != nil {
		return h.Box(exc), nil
	}
	return h.Box(v), nil
}
