package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mentxuapp/backend/internal/mentxu"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeDomainError maps domain errors to HTTP statuses. Unexpected errors
// are logged and reported as a generic 500.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, mentxu.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, mentxu.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, mentxu.ErrStopLocked):
		writeError(w, http.StatusConflict, "stop is locked")
	case errors.Is(err, mentxu.ErrDuplicate):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, mentxu.ErrConflict):
		writeError(w, http.StatusConflict, "concurrent modification, retry")
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// idParam parses a positive integer URL parameter.
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
