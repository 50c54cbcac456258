package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	viewChat "github.com/johndosdos/friendlychat/components/chat"
	"github.com/johndosdos/friendlychat/internal/session"
)

// ServeChat renders the chat page. It is readable while signed out; the
// websocket session fills in the identity and the feed.
func ServeChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := viewChat.Page(session.MaxDraftLength).Render(r.Context(), w); err != nil {
			log.Printf("handler/chat: failed to render page: %v", err)
		}
	}
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// ServeHealthz reports whether every dependency answers.
func ServeHealthz(deps ...Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, d := range deps {
			if err := d.Ping(ctx); err != nil {
				log.Printf("handler/healthz: %v", err)
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
