// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by handlers.
var (
	ErrBadRequest   = errors.New("malformed request")
	ErrUnauthorized = errors.New("unauthorized")
)

// Mapping binds a domain error to the problem document returned for it.
type Mapping struct {
	Target error
	Status int
	Title  string
	Kind   string
}

var defaultMappings = []Mapping{
	{Target: ErrBadRequest, Status: http.StatusBadRequest, Title: "Bad Request", Kind: "bad_request"},
	{Target: ErrUnauthorized, Status: http.StatusUnauthorized, Title: "Unauthorized", Kind: "unauthorized"},
}

// RespondError maps err to an RFC7807 response using the first matching mapping. Domain
// mappings take precedence over the defaults. Unknown errors become 500 without detail.
func RespondError(w http.ResponseWriter, err error, mappings ...Mapping) {
	RespondErrorWith(w, err, nil, mappings...)
}

// RespondErrorWith is RespondError with extension members attached to the problem document.
func RespondErrorWith(w http.ResponseWriter, err error, extra map[string]any, mappings ...Mapping) {
	for _, set := range [][]Mapping{mappings, defaultMappings} {
		for _, m := range set {
			if errors.Is(err, m.Target) {
				WriteProblem(w, ProblemDetail{
					Type:   "about:blank",
					Title:  m.Title,
					Status: m.Status,
					Detail: err.Error(),
					Kind:   m.Kind,
					Extra:  extra,
				})
				return
			}
		}
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
