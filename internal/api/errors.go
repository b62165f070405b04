package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zaler23/writer/internal/engine"
	"github.com/zaler23/writer/internal/store"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Detail string `json:"detail"`
}

// writeError translates a domain error to an HTTP response.
//
// Mapping: not-found reads are 404, uniqueness conflicts and rejected
// preconditions 409, a target chapter in the wrong project 403, invalid
// input 400, everything else 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	default:
		if ae, ok := engine.AsActionError(err); ok {
			if ae.Code == engine.CodeTargetMismatch {
				status = http.StatusForbidden
			} else {
				status = http.StatusConflict
			}
		}
	}

	writeJSON(w, status, errorBody{Detail: err.Error()})
}

// errBadRequest marks validation failures; wrap it with context.
var errBadRequest = errors.New("invalid request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
