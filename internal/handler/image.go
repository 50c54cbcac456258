package handler

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"

	"github.com/johndosdos/friendlychat/internal/auth"
	"github.com/johndosdos/friendlychat/internal/submission"
	ws "github.com/johndosdos/friendlychat/internal/websocket"
)

// MaxImageBytes caps an uploaded image.
const MaxImageBytes = 10 << 20

type SessionLookup interface {
	Lookup(ctx context.Context, key string) (ws.Member, bool)
}

// ServeImageUpload hands a picked file to the page's session. It expects
// the caller's identity, if any, in the request context. Outcomes,
// including notices, reach the page over its websocket.
func ServeImageUpload(sessions SessionLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes+1<<20)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, "Invalid form data.", http.StatusBadRequest)
			log.Printf("handler/image: failed to parse form: %v", err)
			return
		}

		member, ok := sessions.Lookup(ctx, r.FormValue("session_id"))
		if !ok {
			http.Error(w, "Unknown session.", http.StatusNotFound)
			return
		}

		// Only the user who opened the page may post into it. A signed-out
		// page only takes uploads from a signed-out caller.
		callerID, _ := auth.GetUserFromContext(ctx)
		if callerID != member.UserID() {
			slog.WarnContext(ctx, "image upload for another user's session",
				"session_id", member.Key())
			http.Error(w, "Forbidden.", http.StatusForbidden)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Missing file.", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
		if err != nil {
			http.Error(w, "Invalid file.", http.StatusBadRequest)
			return
		}
		if len(data) > MaxImageBytes {
			http.Error(w, "Image too large.", http.StatusRequestEntityTooLarge)
			return
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(data)
		}

		err = member.SubmitImage(ctx, submission.Upload{
			Filename:    header.Filename,
			ContentType: contentType,
			Data:        data,
		})
		if err != nil {
			http.Error(w, "Session closed.", http.StatusGone)
			return
		}

		w.WriteHeader(http.StatusAccepted)
	}
}
