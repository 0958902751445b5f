package hostrt

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/hanpama/gqljit/internal/hostapi"
)

// ErrFatal marks errors that must abort the whole execution instead of being
// recorded against a field. Wrap with Fatal.
var ErrFatal = errors.New("fatal")

// Fatal marks err as fatal.
func Fatal(err error) error {
	return fmt.Errorf("%w: %w", ErrFatal, err)
}

// Exception is the host representation of a failure. Generated code sees it
// only as a handle and classifies it with exc_matches.
type Exception struct {
	Err   error
	Fatal bool
	Trace errors.StackTrace
}

func (e *Exception) Error() string { return e.Err.Error() }
func (e *Exception) Unwrap() error { return e.Err }

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// NewException classifies err. Errors wrapping ErrFatal, context.Canceled or
// context.DeadlineExceeded are fatal; everything else is recoverable. The
// innermost stack trace carried by err is kept, otherwise the current stack
// is captured.
func NewException(err error) *Exception {
	var exc *Exception
	if errors.As(err, &exc) {
		return exc
	}
	return &Exception{
		Err:   err,
		Fatal: errors.Is(err, ErrFatal) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded),
		Trace: traceOf(err),
	}
}

func traceOf(err error) errors.StackTrace {
	var trace errors.StackTrace
	for e := err; e != nil; e = errors.Unwrap(e) {
		if st, ok := e.(stackTracer); ok {
			trace = st.StackTrace()
		}
	}
	if trace == nil {
		trace = errors.WithStack(err).(stackTracer).StackTrace()
	}
	return trace
}

// panicException converts a recovered panic into a fatal exception.
func panicException(r any) *Exception {
	var err error
	if e, ok := r.(error); ok {
		err = errors.Wrap(e, "panic")
	} else {
		err = errors.Errorf("panic: %v", r)
	}
	return &Exception{Err: err, Fatal: true, Trace: err.(stackTracer).StackTrace()}
}

// Traceback is the value exception_get_traceback hands out.
type Traceback struct {
	Frames errors.StackTrace
}

// LocatedError is a recoverable failure annotated with the path of the field
// that produced it. Path holds string aliases and int list indices.
type LocatedError struct {
	Err       error
	Path      []any
	Traceback errors.StackTrace
}

func (e *LocatedError) Error() string {
	return fmt.Sprintf("%v (at %v)", e.Err, e.Path)
}

func (e *LocatedError) Unwrap() error { return e.Err }

// MarshalJSON renders the error in GraphQL response shape.
func (e *LocatedError) MarshalJSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(struct {
		Message string `json:"message"`
		Path    []any  `json:"path,omitempty"`
	}{Message: e.Err.Error(), Path: e.Path})
}

// raise replaces the active exception state with exc.
func (h *Heap) raise(exc *Exception) {
	h.ErrClear()
	h.excValue = h.Box(exc)
	h.excType = h.Box(ExceptionType{Fatal: exc.Fatal})
	h.excTrace = None
	if len(exc.Trace) > 0 {
		h.excTrace = h.Box(Traceback{Frames: exc.Trace})
	}
}

func (h *Heap) raiseErr(format string, args ...any) {
	h.raise(NewException(errors.Errorf(format, args...)))
}

// Pending reports whether an exception is active.
func (h *Heap) Pending() bool { return h.excValue != Null }

// ErrRestore installs the triple as the active exception state. All three
// references are stolen.
func (h *Heap) ErrRestore(typ, value, trace Handle) {
	h.ErrClear()
	h.excType, h.excValue, h.excTrace = typ, value, trace
}

// ErrFetch hands the active exception value to the caller and clears the
// state. It returns Null when nothing is pending.
func (h *Heap) ErrFetch() (Handle, error) {
	value := h.excValue
	if value == Null {
		return Null, nil
	}
	typ, trace := h.excType, h.excTrace
	h.excType, h.excValue, h.excTrace = Null, Null, Null
	if err := h.DecRef(typ); err != nil {
		return Null, err
	}
	if err := h.DecRef(trace); err != nil {
		return Null, err
	}
	return value, nil
}

// ErrClear drops the active exception state.
func (h *Heap) ErrClear() {
	typ, value, trace := h.excType, h.excValue, h.excTrace
	h.excType, h.excValue, h.excTrace = Null, Null, Null
	// Stale handles here mean the state was corrupted by a misbehaving
	// program; the invocation traps on its next access anyway.
	_ = h.DecRef(typ)
	_ = h.DecRef(value)
	_ = h.DecRef(trace)
}

// TakeException fetches and releases the active exception, returning it as a
// Go error.
func (h *Heap) TakeException() (*Exception, error) {
	value, err := h.ErrFetch()
	if err != nil {
		return nil, err
	}
	if value == Null {
		return nil, errors.New("no exception is pending")
	}
	defer h.DecRef(value)
	v, err := h.Value(value)
	if err != nil {
		return nil, err
	}
	exc, ok := v.(*Exception)
	if !ok {
		return nil, fmt.Errorf("pending exception value is %T", v)
	}
	return exc, nil
}

// ExcMatches reports whether handle holds an exception of the given class.
func (h *Heap) ExcMatches(handle Handle, class int32) int32 {
	if handle == Null || handle == None {
		return 0
	}
	v, err := h.Value(handle)
	if err != nil {
		return 0
	}
	exc, ok := v.(*Exception)
	if !ok {
		return 0
	}
	switch class {
	case hostapi.ClassBaseException:
		return 1
	case hostapi.ClassException:
		if !exc.Fatal {
			return 1
		}
	}
	return 0
}

// ObjectType returns a new reference to the type of the exception under
// handle.
func (h *Heap) ObjectType(handle Handle) (Handle, error) {
	v, err := h.Value(handle)
	if err != nil {
		return Null, err
	}
	if exc, ok := v.(*Exception); ok {
		return h.Box(ExceptionType{Fatal: exc.Fatal}), nil
	}
	return h.Box(fmt.Sprintf("%T", v)), nil
}

// ExceptionGetTraceback returns a new reference to the traceback of the
// exception under handle, or None.
func (h *Heap) ExceptionGetTraceback(handle Handle) (Handle, error) {
	exc, err := valueAs[*Exception](h, handle)
	if err != nil {
		return Null, err
	}
	if len(exc.Trace) == 0 {
		return None, nil
	}
	return h.Box(Traceback{Frames: exc.Trace}), nil
}

// NewLocatedError builds a located error from an exception, an optional
// traceback (None to keep the exception's own) and a path tuple. Arguments
// are borrowed.
func (h *Heap) NewLocatedError(exc, trace, path Handle) (Handle, error) {
	e, err := valueAs[*Exception](h, exc)
	if err != nil {
		return Null, err
	}
	le := &LocatedError{Err: e.Err, Traceback: e.Trace}
	if trace != None {
		tb, err := valueAs[Traceback](h, trace)
		if err != nil {
			return Null, err
		}
		le.Traceback = tb.Frames
	}
	segments, err := h.Items(path)
	if err != nil {
		return Null, err
	}
	for _, s := range segments {
		v, err := h.Value(s)
		if err != nil {
			return Null, err
		}
		switch v := v.(type) {
		case string:
			le.Path = append(le.Path, v)
		case int64:
			le.Path = append(le.Path, int(v))
		case int:
			le.Path = append(le.Path, v)
		default:
			return Null, fmt.Errorf("invalid path segment %T", v)
		}
	}
	return h.Box(le), nil
}
