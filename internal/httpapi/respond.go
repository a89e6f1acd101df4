package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

type errorBody struct {
	Kind    store.Kind `json:"kind"`
	Message string     `json:"message"`
}

var statusOf = map[store.Kind]int{
	store.KindValidation:      http.StatusBadRequest,
	store.KindNotFound:        http.StatusNotFound,
	store.KindConflict:        http.StatusConflict,
	store.KindStateGuard:      http.StatusConflict,
	store.KindSchemaViolation: http.StatusUnprocessableEntity,
	store.KindConnection:      http.StatusServiceUnavailable,
	store.KindConfiguration:   http.StatusInternalServerError,
	store.KindStore:           http.StatusInternalServerError,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := store.KindOf(err)
	status, ok := statusOf[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", kind,
			"error", err,
		)
	}
	writeJSON(w, status, errorBody{Kind: kind, Message: err.Error()})
}

// decode reads a JSON body into v. Malformed bodies are validation errors.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return schema.Invalid("body", "cannot be empty")
		}
		return schema.Invalid("body", "%v", err)
	}
	return nil
}

// owner reads the user and campaign query parameters.
func owner(r *http.Request) (user, campaign string) {
	q := r.URL.Query()
	return strings.TrimSpace(q.Get("user")), strings.TrimSpace(q.Get("campaign"))
}
