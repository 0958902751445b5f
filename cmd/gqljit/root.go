package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/hanpama/gqljit/internal/datasource"
	"github.com/hanpama/gqljit/internal/language"
	"github.com/hanpama/gqljit/internal/schema"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Schema  string
}

// NewRootCommand creates the gqljit command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "gqljit",
		Short: "GraphQL selection compiler",
		Long:  "Compiles GraphQL operations into WebAssembly routines and executes them.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&opts.Schema, "schema", "s", "", "path to the GraphQL SDL file (required)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewWATCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	return cmd
}

func (o *RootOptions) loadSchema() (*schema.Schema, error) {
	if o.Schema == "" {
		return nil, fmt.Errorf("--schema is required")
	}
	sdl, err := os.ReadFile(o.Schema)
	if err != nil {
		return nil, err
	}
	sch, err := schema.BuildFromSDL(string(sdl))
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	return sch, nil
}

// operationFlags are shared by commands that take one operation.
type operationFlags struct {
	Query     string
	File      string
	Operation string
	Variables string
}

func (f *operationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Query, "query", "q", "", "operation text")
	cmd.Flags().StringVarP(&f.File, "file", "f", "", "read the operation from a file")
	cmd.Flags().StringVar(&f.Operation, "operation", "", "operation name")
	cmd.Flags().StringVar(&f.Variables, "variables", "", "variables as a JSON object")
	cmd.MarkFlagsMutuallyExclusive("query", "file")
}

func (f *operationFlags) load() (*language.QueryDocument, map[string]any, error) {
	query := f.Query
	if f.File != "" {
		data, err := os.ReadFile(f.File)
		if err != nil {
			return nil, nil, err
		}
		query = string(data)
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil, fmt.Errorf("an operation is required (--query or --file)")
	}
	doc, err := language.ParseQuery(query)
	if err != nil {
		return nil, nil, fmt.Errorf("parse operation: %w", err)
	}
	vars := map[string]any{}
	if f.Variables != "" {
		if err := json.UnmarshalFromString(f.Variables, &vars); err != nil {
			return nil, nil, fmt.Errorf("invalid --variables: %w", err)
		}
	}
	return doc, vars, nil
}

// dataFlags select the root value.
type dataFlags struct {
	Config string
	Data   string
}

func (f *dataFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.Config, "config", "c", "", "data source config file (YAML)")
	cmd.Flags().StringVarP(&f.Data, "data", "d", "", "root value document (YAML or JSON)")
	cmd.MarkFlagsMutuallyExclusive("config", "data")
}

func (f *dataFlags) open(ctx context.Context) (any, func() error, error) {
	cfg := &datasource.Config{Data: f.Data}
	if f.Config != "" {
		var err error
		if cfg, err = datasource.LoadConfig(f.Config); err != nil {
			return nil, nil, err
		}
	}
	root, closeFn, err := datasource.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open data: %w", err)
	}
	return root, closeFn, nil
}
