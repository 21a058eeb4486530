package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/quillmesh/quillmesh/internal/articlestore"
	"github.com/quillmesh/quillmesh/internal/federation"
	"github.com/quillmesh/quillmesh/internal/repository"
)

// parseResourceIDFromURL parses a URL path with the format
// "/{apiPath}/{resourceID}" and returns the resourceID.
func parseResourceIDFromURL(url, apiPath string) (string, error) {
	url = strings.TrimPrefix(url, fmt.Sprintf("/%s", apiPath))

	var resultPath []string
	for _, v := range strings.Split(url, "/") {
		if v != "" {
			resultPath = append(resultPath, v)
		}
	}

	switch len(resultPath) {
	case 0:
		return "", fmt.Errorf("no resource id set in url path")
	case 1:
		return resultPath[0], nil
	default:
		return "", fmt.Errorf("invalid url path")
	}
}

func writeJSONError(status int, message string) httpError {
	return httpError{status: status, message: message}
}

// httpError is returned by handlers that want a caller-supplied status
// code instead of the default 500 that writeError assigns to every
// unrecognized error value.
type httpError struct {
	status  int
	message string
}

func (e httpError) Error() string { return e.message }

func (e httpError) StatusCode() int { return e.status }

// writeError maps an error to an HTTP status the way spec.md §4.8
// requires: signature/validation failures and unknown base versions are
// 4xx and not retried by the sender, store/internal failures are 5xx so
// the sender retries.
func writeError(w http.ResponseWriter, err error) {
	var he httpError
	if errors.As(err, &he) {
		http.Error(w, he.message, he.status)
		return
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, repository.ErrTitleTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, articlestore.ErrUnknownBase):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, federation.ErrSignatureInvalid):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, federation.ErrDomainMismatch):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, federation.ErrActorDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, federation.ErrUnknownActivityType):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
