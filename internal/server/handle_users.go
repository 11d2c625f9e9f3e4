package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mentxuapp/backend/internal/ledger"
	"github.com/mentxuapp/backend/internal/mentxu"
)

const (
	defaultUserLimit = 50
	maxUserLimit     = 200
)

// RegisterRequest is the request body for POST /api/users/register.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	DeviceID  string `json:"deviceId,omitempty"`
}

type RegisterResponse struct {
	Message  string                `json:"message"`
	User     mentxu.User           `json:"user"`
	Progress []mentxu.StopProgress `json:"progress"`
	Existing bool                  `json:"existing"`
}

type UserProgressResponse struct {
	User     mentxu.User           `json:"user"`
	FullName string                `json:"fullName"`
	Progress []mentxu.StopProgress `json:"progress"`
}

func handleRegister(logger *slog.Logger, l Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		reg, err := l.Register(r.Context(), ledger.Registration{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			DeviceID:  req.DeviceID,
		})
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		resp := RegisterResponse{
			Message:  "user registered",
			User:     reg.User,
			Progress: reg.Progress,
			Existing: reg.Existing,
		}
		status := http.StatusCreated
		if reg.Existing {
			resp.Message = "device already registered"
			status = http.StatusOK
		}
		writeJSON(w, status, resp)
	}
}

func handleListUsers(logger *slog.Logger, catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := queryInt(r, "limit", defaultUserLimit)
		if !ok || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		offset, ok := queryInt(r, "offset", 0)
		if !ok || offset < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		limit = min(limit, maxUserLimit)

		users, err := catalog.ListUsers(r.Context(), limit, offset)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		total, err := catalog.CountUsers(r.Context())
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		w.Header().Set("X-Total-Count", strconv.Itoa(total))
		writeJSON(w, http.StatusOK, users)
	}
}

func handleGetUser(logger *slog.Logger, catalog Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		u, err := catalog.GetUser(r.Context(), id)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

func handleUserProgress(logger *slog.Logger, l Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		u, rows, err := l.UserLedger(r.Context(), id)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, UserProgressResponse{
			User:     u,
			FullName: u.FullName(),
			Progress: rows,
		})
	}
}

func handleDeleteUser(logger *slog.Logger, l Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "id")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		if err := l.RemoveUser(r.Context(), id); err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "user deleted"})
	}
}

func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
