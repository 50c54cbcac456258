package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/rs/xid"

	"github.com/johndosdos/friendlychat/internal/auth"
)

const oauthStateCookie = "oauth_state"

// GoogleSignIn is the OAuth client used by the Google sign-in routes.
type GoogleSignIn interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (auth.GoogleProfile, error)
}

// ServeGoogleLogin starts the Google sign-in popup flow.
func ServeGoogleLogin(g GoogleSignIn) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := xid.New().String()
		http.SetCookie(w, &http.Cookie{
			Name:     oauthStateCookie,
			Value:    state,
			Path:     "/account/google",
			MaxAge:   10 * 60,
			Secure:   true,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		http.Redirect(w, r, g.AuthURL(state), http.StatusFound)
	}
}

// ServeGoogleCallback finishes Google sign-in and starts a session.
func ServeGoogleCallback(g GoogleSignIn, db AccountStore, keys auth.Keys) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		c, err := r.Cookie(oauthStateCookie)
		if err != nil || c.Value == "" || c.Value != r.URL.Query().Get("state") {
			http.Error(w, "Invalid sign-in state.", http.StatusBadRequest)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Path: "/account/google", MaxAge: -1})

		code := r.URL.Query().Get("code")
		if code == "" {
			http.Redirect(w, r, "/account/login", http.StatusSeeOther)
			return
		}

		profile, err := g.Exchange(ctx, code)
		if err != nil {
			log.Printf("handler/google: %v", err)
			http.Error(w, "Sign-in failed.", http.StatusBadGateway)
			return
		}

		userID, err := auth.LinkGoogleUser(ctx, db, profile)
		if err != nil {
			log.Printf("handler/google: %v", err)
			http.Error(w, "Server error.", http.StatusInternalServerError)
			return
		}

		if err := auth.SetTokensAndCookies(ctx, w, db, keys, userID); err != nil {
			log.Printf("handler/google: %v", err)
			http.Error(w, "Server error.", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
