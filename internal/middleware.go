package internal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/johndosdos/friendlychat/internal/auth"
)

// identify resolves the caller from the JWT cookie, falling back to the
// refresh token. ok is false when neither yields a user.
func identify(w http.ResponseWriter, r *http.Request, db auth.Store, keys auth.Keys) (*http.Request, bool) {
	if c, err := r.Cookie(auth.JWTCookie); err == nil {
		if userID, err := auth.ValidateJWT(c.Value, keys.Secret); err == nil {
			return r.WithContext(context.WithValue(r.Context(), auth.UserIDKey, userID)), true
		}
	}

	userID, err := auth.RefreshSession(w, r, db, keys)
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			slog.InfoContext(r.Context(), "refresh session rejected", "error", err)
		}
		return r, false
	}

	return r.WithContext(context.WithValue(r.Context(), auth.UserIDKey, userID)), true
}

// RequireUser only serves next for signed-in callers. Everyone else is
// sent to the login page.
func RequireUser(db auth.Store, keys auth.Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, ok := identify(w, r, db, keys)
			if !ok {
				if r.Header.Get("HX-Request") == "true" {
					w.Header().Set("HX-Redirect", "/account/login")
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				http.Redirect(w, r, "/account/login", http.StatusSeeOther)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// OptionalUser attaches the user ID when there is one and serves next
// either way. The chat page and feed are readable while signed out.
func OptionalUser(db auth.Store, keys auth.Keys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, _ = identify(w, r, db, keys)
			next.ServeHTTP(w, r)
		})
	}
}
