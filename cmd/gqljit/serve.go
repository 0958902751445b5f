package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hanpama/gqljit/internal/eventbus"
	"github.com/hanpama/gqljit/internal/executor"
	"github.com/hanpama/gqljit/internal/jit"
	"github.com/hanpama/gqljit/internal/otel"
	"github.com/hanpama/gqljit/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	dataFlags

	Addr            string
	Pretty          bool
	GraphiQL        bool
	Timeout         time.Duration
	MetadataHeaders []string
	CORSOrigins     []string
	OTelEndpoint    string
	OTelService     string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a GraphQL endpoint over HTTP",
		Long: `Serve /graphql, executing every operation through compiled routines
against the configured root value.

Example:
  gqljit serve -s schema.graphql -c gqljit.yaml --addr :8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts)
		},
	}
	opts.dataFlags.register(cmd)
	cmd.Flags().StringVar(&opts.Addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", false, "pretty-print JSON responses")
	cmd.Flags().BoolVar(&opts.GraphiQL, "graphiql", true, "serve GraphiQL to browsers")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "per-request timeout")
	cmd.Flags().StringSliceVar(&opts.MetadataHeaders, "metadata-header", nil, "forward HTTP header to resolvers as gRPC metadata (repeatable)")
	cmd.Flags().StringSliceVar(&opts.CORSOrigins, "cors-origin", nil, "allowed CORS origin (repeatable)")
	cmd.Flags().StringVar(&opts.OTelEndpoint, "otel.endpoint", "", "OTLP collector endpoint")
	cmd.Flags().StringVar(&opts.OTelService, "otel.service", "gqljit", "OpenTelemetry service name")
	return cmd
}

// newHandler wires the executor and HTTP handler for opts.
func newHandler(ctx context.Context, opts *ServeOptions) (http.Handler, func(), error) {
	sch, err := opts.loadSchema()
	if err != nil {
		return nil, nil, err
	}
	root, closeData, err := opts.dataFlags.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	backend, err := jit.NewBackend()
	if err != nil {
		_ = closeData()
		return nil, nil, err
	}
	cleanup := func() {
		_ = backend.Close()
		_ = closeData()
	}

	exec := executor.NewExecutor(backend, sch, executor.WithLogger(slog.Default()))
	sopts := []server.Option{server.WithRootValue(root), server.WithGraphiQL(opts.GraphiQL)}
	if opts.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	if opts.Timeout > 0 {
		sopts = append(sopts, server.WithTimeout(opts.Timeout))
	}
	if len(opts.MetadataHeaders) > 0 {
		sopts = append(sopts, server.WithMetadataHeaders(opts.MetadataHeaders...))
	}
	if len(opts.CORSOrigins) > 0 {
		sopts = append(sopts, server.WithCORS(opts.CORSOrigins...))
	}
	h, err := server.New(exec, sopts...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("server init: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/graphql", h)
	return mux, cleanup, nil
}

func serve(cmd *cobra.Command, opts *ServeOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventbus.Use(eventbus.New())
	shutdown, err := otel.Setup(ctx, opts.OTelEndpoint, opts.OTelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	handler, cleanup, err := newHandler(ctx, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{Addr: opts.Addr, Handler: handler}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	slog.Info("GraphQL server listening", "addr", opts.Addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		slog.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
