package handler

import (
	"log"
	"net/http"

	"github.com/johndosdos/friendlychat/internal/auth"
	"github.com/johndosdos/friendlychat/internal/push"
)

// ServePushToken stores the device token the page obtained for the
// signed-in user.
func ServePushToken(db push.Tokens) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID, err := auth.GetUserFromContext(ctx)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data.", http.StatusBadRequest)
			return
		}

		token := r.PostFormValue("token")
		if token == "" {
			http.Error(w, "Missing token.", http.StatusBadRequest)
			return
		}

		if err := push.Register(ctx, db, userID, token); err != nil {
			log.Printf("handler/push: %v", err)
			http.Error(w, "Server error.", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
