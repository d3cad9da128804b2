package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/conductor-oss/conductor/internal/apperrors"
)

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps an apperrors sentinel to its HTTP status and writes a
// JSON error body. Unrecognised errors are reported as 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrValidation),
		errors.Is(err, apperrors.ErrCircularDependency),
		errors.Is(err, apperrors.ErrDependencyTerminated),
		errors.Is(err, apperrors.ErrProtectedState),
		errors.Is(err, apperrors.ErrDependentExists),
		errors.Is(err, apperrors.ErrStaleState):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		status = http.StatusNotFound
	}

	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
