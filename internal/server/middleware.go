package server

import (
	"context"
	"net/http"

	"github.com/mentxuapp/backend/internal/mentxu"
)

type ctxKey int

const ctxKeyAdmin ctxKey = iota

const adminCookieName = "admin_session"

func adminAuthMiddleware(admin AdminStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(adminCookieName)
			if err != nil || cookie.Value == "" {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			sess, err := admin.AdminFromSession(r.Context(), cookie.Value)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyAdmin, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func adminFrom(r *http.Request) mentxu.AdminSession {
	return r.Context().Value(ctxKeyAdmin).(mentxu.AdminSession)
}
