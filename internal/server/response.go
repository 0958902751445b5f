package server

import (
	"net/http"

	"github.com/hanpama/gqljit/internal/executor"
	"github.com/hanpama/gqljit/internal/language"
)

type location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type responseError struct {
	Message    string         `json:"message"`
	Locations  []location     `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// response keeps data next to errors, so a null data member is written.
type response struct {
	Data   any             `json:"data"`
	Errors []responseError `json:"errors,omitempty"`
}

func fromGQLError(err *language.Error) responseError {
	re := responseError{Message: err.Message, Extensions: err.Extensions}
	for _, loc := range err.Locations {
		re.Locations = append(re.Locations, location{Line: loc.Line, Column: loc.Column})
	}
	return re
}

func fromResult(res *executor.ExecutionResult) response {
	out := response{Data: res.Data}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, responseError{Message: e.Message, Path: e.Path, Extensions: e.Extensions})
	}
	return out
}

func (h *Handler) writeError(w http.ResponseWriter, err *requestError) {
	writeJSON(w, err.status, response{Errors: []responseError{{Message: err.message}}}, h.opt.Pretty)
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}
