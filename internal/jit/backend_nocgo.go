//go:build !cgo
// +build !cgo

package jit

import "github.com/hanpama/gqljit/internal/selection"

// Backend is unavailable without cgo. Generate still works.
type Backend struct {
	opts options
}

func NewBackend(opts ...Option) (*Backend, error) {
	return nil, ErrNoJIT
}

func (b *Backend) Compile(root *selection.ObjectField) (*Program, error) {
	return nil, ErrNoJIT
}

func (b *Backend) Close() error {
	return ErrNoJIT
}
