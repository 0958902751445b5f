// Package server serves compiled GraphQL operations over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"google.golang.org/grpc/metadata"

	"github.com/hanpama/gqljit/internal/eventbus"
	"github.com/hanpama/gqljit/internal/events"
	"github.com/hanpama/gqljit/internal/executor"
	"github.com/hanpama/gqljit/internal/language"
	"github.com/hanpama/gqljit/internal/reqid"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RequestIDHeader carries the execution id in outgoing metadata.
const RequestIDHeader = "graphql-request-id"

// Handler is an http.Handler that runs GraphQL requests through an
// executor against a fixed root value.
type Handler struct {
	exec     *executor.Executor
	opt      Options
	forward  map[string]struct{}
	origins  map[string]struct{}
	anyOrigin bool
}

type Options struct {
	// Timeout applies when the incoming request context has no deadline.
	// 0 disables it.
	Timeout time.Duration

	// Pretty indents JSON responses.
	Pretty bool

	// MaxBodyBytes limits POST bodies. 0 means unlimited.
	MaxBodyBytes int64

	// CORS is disabled while AllowedOrigins is empty.
	CORS CORSOptions

	// MetadataHeaders are HTTP headers copied into the outgoing gRPC
	// metadata resolvers see. Names are case-insensitive.
	MetadataHeaders []string

	// GraphiQL serves the in-browser IDE to GET requests accepting HTML.
	GraphiQL bool

	// RootValue is the initial value every operation runs against.
	RootValue any
}

// CORSOptions holds simple CORS settings. "*" allows any origin.
type CORSOptions struct {
	AllowedOrigins []string
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithGraphiQL(enable bool) Option    { return func(o *Options) { o.GraphiQL = enable } }
func WithRootValue(v any) Option         { return func(o *Options) { o.RootValue = v } }

func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}

func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}

// New creates a handler serving exec.
func New(exec *executor.Executor, opts ...Option) (*Handler, error) {
	if exec == nil {
		return nil, errors.New("server: nil executor")
	}
	op := Options{Timeout: 10 * time.Second, GraphiQL: true}
	for _, f := range opts {
		f(&op)
	}
	h := &Handler{
		exec:    exec,
		opt:     op,
		forward: make(map[string]struct{}, len(op.MetadataHeaders)),
		origins: make(map[string]struct{}, len(op.CORS.AllowedOrigins)),
	}
	for _, name := range op.MetadataHeaders {
		h.forward[strings.ToLower(name)] = struct{}{}
	}
	for _, o := range op.CORS.AllowedOrigins {
		if o == "*" {
			h.anyOrigin = true
		}
		h.origins[o] = struct{}{}
	}
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	ctx, rid := reqid.NewContext(ctx)

	rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Method: r.Method, Target: r.URL.Path})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Method: r.Method, Target: r.URL.Path, Status: rw.status, Duration: time.Since(start)})
	}()

	h.cors(rw, r)
	switch {
	case r.Method == http.MethodOptions:
		rw.WriteHeader(http.StatusNoContent)
		return
	case r.Method != http.MethodGet && r.Method != http.MethodPost:
		h.writeError(rw, &requestError{status: http.StatusMethodNotAllowed, message: "method not allowed"})
		return
	case r.Method == http.MethodGet && h.opt.GraphiQL && r.URL.Query().Get("query") == "" && acceptsHTML(r.Header.Get("Accept")):
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = rw.Write(graphiqlPage)
		return
	}

	reqs, batched, rerr := decodeRequest(r, h.opt.MaxBodyBytes)
	if rerr != nil {
		h.writeError(rw, rerr)
		return
	}

	ctx = metadata.NewOutgoingContext(ctx, h.metadata(r.Header, rid))
	results := make([]response, len(reqs))
	for i, req := range reqs {
		results[i] = h.execute(ctx, req)
	}
	if batched {
		writeJSON(rw, http.StatusOK, results, h.opt.Pretty)
		return
	}
	writeJSON(rw, http.StatusOK, results[0], h.opt.Pretty)
}

// metadata selects the forwarded headers and tags them with the request id.
func (h *Handler) metadata(header http.Header, rid string) metadata.MD {
	md := metadata.MD{}
	for name, values := range header {
		if _, ok := h.forward[strings.ToLower(name)]; ok {
			md.Append(name, values...)
		}
	}
	md.Set(RequestIDHeader, rid)
	return md
}

func (h *Handler) execute(ctx context.Context, req Request) response {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		var ge *language.Error
		if errors.As(err, &ge) {
			return response{Errors: []responseError{fromGQLError(ge)}}
		}
		return response{Errors: []responseError{{Message: err.Error()}}}
	}

	opType := ""
	for _, op := range doc.Operations {
		if op.Name == req.OperationName || (req.OperationName == "" && len(doc.Operations) == 1) {
			opType = string(op.Operation)
			break
		}
	}

	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})
	result := h.exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, h.opt.RootValue)
	errs := make([]error, len(result.Errors))
	for i := range result.Errors {
		errs[i] = result.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		OperationName: req.OperationName,
		OperationType: opType,
		Errors:        errs,
		Duration:      time.Since(start),
	})
	return fromResult(result)
}

func (h *Handler) cors(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.origins) == 0 {
		return
	}
	if h.anyOrigin {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else if _, ok := h.origins[origin]; ok {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	} else {
		return
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func acceptsHTML(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mt, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if mt == "text/html" || mt == "*/*" {
			return true
		}
	}
	return false
}

// statusWriter remembers the status code for the finish event.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
