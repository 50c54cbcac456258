package handler

import (
	"errors"
	"log"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	"github.com/johndosdos/friendlychat/internal/auth"
	"github.com/johndosdos/friendlychat/internal/model"
	"github.com/johndosdos/friendlychat/internal/session"
	"github.com/johndosdos/friendlychat/internal/submission"
	ws "github.com/johndosdos/friendlychat/internal/websocket"
)

// SessionDeps is what every chat session is built from.
type SessionDeps struct {
	Store    session.Store
	Objects  submission.Objects
	Reporter submission.Reporter
	Options  session.Options
}

// ServeWs upgrades the connection and runs a chat session on it until the
// page goes away. Signed-out pages get a session too.
func ServeWs(h *ws.Hub, users auth.Store, deps SessionDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var user *model.SessionUser
		userID, err := auth.GetUserFromContext(ctx)
		switch {
		case err == nil:
			user, err = auth.LoadUser(ctx, users, userID)
			if err != nil {
				log.Printf("handler/ws: %v", err)
				http.Error(w, "Server error.", http.StatusInternalServerError)
				return
			}
		case !errors.Is(err, auth.ErrNoUser):
			log.Printf("handler/ws: %v", err)
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Printf("handler/ws: failed to accept websocket: %v", err)
			return
		}

		sess := session.New(user, deps.Store, deps.Objects, deps.Reporter, deps.Options)
		slog.InfoContext(ctx, "session opened",
			"session_id", sess.ID,
			"signed_in", user != nil)

		// Serve blocks; the request context ends when this handler returns.
		ws.NewClient(conn, sess, h).Serve(ctx)

		slog.InfoContext(ctx, "session closed", "session_id", sess.ID)
	}
}
