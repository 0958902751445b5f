package main

import (
	"github.com/spf13/cobra"

	"github.com/hanpama/gqljit/internal/executor"
	"github.com/hanpama/gqljit/internal/jit"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	operationFlags
	dataFlags
	Pretty bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one operation and print the response",
		Long: `Compile one operation and execute it against a root value read from a
YAML or JSON document, or from a data source config.

Example:
  gqljit run -s schema.graphql -d root.yaml -q '{ viewer { name } }'
  gqljit run -s schema.graphql -c gqljit.yaml -f op.graphql --variables '{"id": 1}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperation(cmd, opts)
		},
	}
	opts.operationFlags.register(cmd)
	opts.dataFlags.register(cmd)
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", false, "indent the response")
	return cmd
}

func runOperation(cmd *cobra.Command, opts *RunOptions) error {
	sch, err := opts.loadSchema()
	if err != nil {
		return err
	}
	doc, vars, err := opts.operationFlags.load()
	if err != nil {
		return err
	}
	root, closeFn, err := opts.dataFlags.open(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	backend, err := jit.NewBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	exec := executor.NewExecutor(backend, sch)
	result := exec.ExecuteRequest(cmd.Context(), doc, opts.Operation, vars, root)

	enc := json.NewEncoder(cmd.OutOrStdout())
	if opts.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}
