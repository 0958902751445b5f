package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
)

// Request is one GraphQL request in the JSON-over-HTTP encoding.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

type requestError struct {
	status  int
	message string
}

func badRequest(msg string) *requestError {
	return &requestError{status: http.StatusBadRequest, message: msg}
}

// decodeRequest reads the requests carried by r. A JSON array body is a
// batch.
func decodeRequest(r *http.Request, maxBody int64) ([]Request, bool, *requestError) {
	if r.Method == http.MethodGet {
		q := r.URL.Query()
		req := Request{Query: q.Get("query"), OperationName: q.Get("operationName")}
		if v := q.Get("variables"); v != "" {
			if err := json.UnmarshalFromString(v, &req.Variables); err != nil {
				return nil, false, badRequest("invalid 'variables' JSON")
			}
		}
		if req.Query == "" {
			return nil, false, badRequest("missing 'query'")
		}
		return []Request{req}, false, nil
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return nil, false, &requestError{status: http.StatusUnsupportedMediaType, message: "unsupported Content-Type"}
		}
	}
	body := r.Body
	if maxBody > 0 {
		body = http.MaxBytesReader(nil, r.Body, maxBody)
	}
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, false, &requestError{status: http.StatusRequestEntityTooLarge, message: "body too large"}
		}
		return nil, false, badRequest("failed to read body")
	}

	var reqs []Request
	batched := len(data) > 0 && data[0] == '['
	if batched {
		err = json.Unmarshal(data, &reqs)
	} else {
		reqs = make([]Request, 1)
		err = json.Unmarshal(data, &reqs[0])
	}
	if err != nil {
		return nil, false, badRequest("invalid JSON")
	}
	if len(reqs) == 0 {
		return nil, false, badRequest("empty batch")
	}
	for _, req := range reqs {
		if req.Query == "" {
			return nil, false, badRequest("missing 'query'")
		}
	}
	return reqs, batched, nil
}
