package hostrt

import (
	"fmt"

	"github.com/hanpama/gqljit/internal/hostapi"
)

// Handle is an index into a Heap. See hostapi for the reserved values.
type Handle = hostapi.Handle

const (
	Null = hostapi.Null
	None = hostapi.None
)

type slot struct {
	value any
	refs  int32
}

// Heap holds the dynamic values of one program invocation. Every slot carries
// a reference count; a slot is recycled when its count drops to zero, and
// releasing a container releases the references it holds.
//
// A Heap is not safe for concurrent use. Each invocation owns its own.
type Heap struct {
	slots []slot
	free  []Handle
	live  int

	// active exception state: a (type, value, traceback) triple of owned
	// handles, all Null when nothing is pending.
	excType, excValue, excTrace Handle

	resolvers *Resolvers
}

// NewHeap returns a heap whose resolver calls are served by resolvers. A nil
// table behaves like an empty one.
func NewHeap(resolvers *Resolvers) *Heap {
	return &Heap{
		slots:     make([]slot, 2, 64),
		resolvers: resolvers,
	}
}

// Live reports the number of handles currently holding at least one
// reference. None is not counted.
func (h *Heap) Live() int { return h.live }

// Box stores v in a new slot and returns an owned reference to it. Nullish
// values box to None.
func (h *Heap) Box(v any) Handle {
	if isNullish(v) {
		return None
	}
	h.live++
	if n := len(h.free); n > 0 {
		id := h.free[n-1]
		h.free = h.free[:n-1]
		h.slots[id] = slot{value: v, refs: 1}
		return id
	}
	h.slots = append(h.slots, slot{value: v, refs: 1})
	return Handle(len(h.slots) - 1)
}

// Value returns the value stored under handle. None yields nil.
func (h *Heap) Value(handle Handle) (any, error) {
	if handle == None {
		return nil, nil
	}
	s, err := h.slot(handle)
	if err != nil {
		return nil, err
	}
	return s.value, nil
}

func (h *Heap) slot(handle Handle) (*slot, error) {
	if handle <= None || int(handle) >= len(h.slots) || h.slots[handle].refs <= 0 {
		return nil, fmt.Errorf("invalid handle: %d", handle)
	}
	return &h.slots[handle], nil
}

// IncRef adds a reference to handle.
func (h *Heap) IncRef(handle Handle) error {
	if handle == None {
		return nil
	}
	s, err := h.slot(handle)
	if err != nil {
		return err
	}
	s.refs++
	return nil
}

// DecRef drops a reference to handle. Null and None are ignored.
func (h *Heap) DecRef(handle Handle) error {
	if handle == Null || handle == None {
		return nil
	}
	s, err := h.slot(handle)
	if err != nil {
		return err
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	v := s.value
	*s = slot{}
	h.free = append(h.free, handle)
	h.live--
	for _, child := range children(v) {
		if err := h.DecRef(child); err != nil {
			return err
		}
	}
	return nil
}

// Unbox converts the value under handle into plain Go data: records become
// map[string]any, tuples and lists become []any, everything else is returned
// as stored. The handle is borrowed.
func (h *Heap) Unbox(handle Handle) (any, error) {
	v, err := h.Value(handle)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case *Record:
		out := make(map[string]any, len(v.keys))
		for _, k := range v.keys {
			item, err := h.Unbox(v.items[k])
			if err != nil {
				return nil, err
			}
			out[k] = item
		}
		return out, nil
	case *Tuple:
		return h.unboxSeq(v.items)
	case *List:
		return h.unboxSeq(v.items)
	}
	return v, nil
}

func (h *Heap) unboxSeq(items []Handle) ([]any, error) {
	out := make([]any, len(items))
	for i, item := range items {
		v, err := h.Unbox(item)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Keys returns the keys of the record under handle in insertion order.
func (h *Heap) Keys(handle Handle) ([]string, error) {
	r, err := valueAs[*Record](h, handle)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), r.keys...), nil
}

// Items returns the handles held by the list or tuple under handle. The
// returned handles are borrowed from the container.
func (h *Heap) Items(handle Handle) ([]Handle, error) {
	v, err := h.Value(handle)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case *List:
		return append([]Handle(nil), v.items...), nil
	case *Tuple:
		return append([]Handle(nil), v.items...), nil
	}
	return nil, fmt.Errorf("handle %d is %T, not a sequence", handle, v)
}

func valueAs[T any](h *Heap, handle Handle) (T, error) {
	var zero T
	v, err := h.Value(handle)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("handle %d is %T, not %T", handle, v, zero)
	}
	return t, nil
}
