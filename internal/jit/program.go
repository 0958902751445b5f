package jit

import "context"

// WAT returns the module text the program was compiled from.
func (p *Program) WAT() string { return p.unit.WAT }

// Routines returns the names of the node routines in emission order.
func (p *Program) Routines() []string {
	return append([]string(nil), p.unit.Routines...)
}

// Run executes the program with a fresh error sink.
func (p *Program) Run(ctx context.Context, root any) (*Result, error) {
	sink := &ErrorSink{}
	data, err := p.Execute(root, ctx, sink)
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, Errors: sink.Errors()}, nil
}
