package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/johndosdos/friendlychat/internal/auth"
)

// RefreshToken issues a new JWT from the refresh token cookie.
func RefreshToken(db auth.Store, keys auth.Keys) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, err := auth.RefreshSession(w, r, db, keys)
		switch {
		case errors.Is(err, auth.ErrNoSession):
			w.Header().Set("HX-Redirect", "/account/login")
			w.WriteHeader(http.StatusUnauthorized)
			return
		case err != nil:
			log.Printf("handler/refresh token: %v", err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
