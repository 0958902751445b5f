package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hanpama/gqljit/internal/executor"
	"github.com/hanpama/gqljit/internal/jit"
)

// WATOptions holds flags for the wat command.
type WATOptions struct {
	*RootOptions
	operationFlags
	Routines bool
}

// NewWATCommand creates the wat command.
func NewWATCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WATOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "wat",
		Short: "Print the WebAssembly text generated for an operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printWAT(cmd, opts)
		},
	}
	opts.operationFlags.register(cmd)
	cmd.Flags().BoolVar(&opts.Routines, "routines", false, "list routine names instead of the module text")
	return cmd
}

func printWAT(cmd *cobra.Command, opts *WATOptions) error {
	sch, err := opts.loadSchema()
	if err != nil {
		return err
	}
	doc, vars, err := opts.operationFlags.load()
	if err != nil {
		return err
	}
	_, tree, errs := executor.NewExecutor(nil, sch).Plan(doc, opts.Operation, vars)
	if errs != nil {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Message
		}
		return errors.New(strings.Join(msgs, "; "))
	}
	unit, err := jit.Generate(tree)
	if err != nil {
		return err
	}
	if opts.Routines {
		for _, name := range unit.Routines {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), unit.WAT)
	return err
}
