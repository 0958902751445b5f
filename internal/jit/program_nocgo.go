//go:build !cgo
// +build !cgo

package jit

// Program is unavailable without cgo.
type Program struct {
	unit *Unit
}

func (p *Program) Execute(root, context any, sink *ErrorSink) (any, error) {
	return nil, ErrNoJIT
}
