package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mentxuapp/backend/internal/mentxu"
)

// AdminLoginRequest is the request body for POST /api/admin/login.
type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AdminMeResponse is the response for GET /api/admin/me.
type AdminMeResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func handleAdminLogin(logger *slog.Logger, admin AdminStore, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminLoginRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		a, err := admin.AdminByUsername(r.Context(), req.Username)
		if errors.Is(err, mentxu.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		sess, err := admin.CreateAdminSession(r.Context(), a.ID, ttl)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     adminCookieName,
			Value:    sess.ID,
			Path:     "/",
			MaxAge:   int(ttl / time.Second),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		logger.Info("admin logged in", "admin_id", a.ID)
		writeJSON(w, http.StatusOK, AdminMeResponse{
			ID:        a.ID,
			Username:  a.Username,
			ExpiresAt: sess.ExpiresAt,
		})
	}
}

func handleAdminMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := adminFrom(r)
		writeJSON(w, http.StatusOK, AdminMeResponse{
			ID:        sess.AdminID,
			Username:  sess.Username,
			ExpiresAt: sess.ExpiresAt,
		})
	}
}

func handleAdminLogout(logger *slog.Logger, admin AdminStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(adminCookieName)
		if err == nil && cookie.Value != "" {
			if err := admin.DeleteAdminSession(r.Context(), cookie.Value); err != nil {
				logger.Warn("deleting admin session", "error", err)
			}
		}

		http.SetCookie(w, &http.Cookie{
			Name:     adminCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
