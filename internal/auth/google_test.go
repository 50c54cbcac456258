package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/johndosdos/friendlychat/internal/database"
)

func newTestGoogle(t *testing.T, profile GoogleProfile) *Google {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(profile)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	g := NewGoogle("client", "secret", "http://localhost/account/google/callback")
	g.config.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/auth",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	g.userInfoURL = srv.URL + "/userinfo"
	return g
}

func TestGoogleAuthURL(t *testing.T) {
	g := NewGoogle("client", "secret", "http://localhost/cb")

	u, err := url.Parse(g.AuthURL("state123"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "state123", u.Query().Get("state"))
	assert.Equal(t, "client", u.Query().Get("client_id"))
	assert.Contains(t, u.Query().Get("scope"), "email")
}

func TestGoogleExchange(t *testing.T) {
	want := GoogleProfile{Sub: "1234", Email: "ana@example.com", Name: "Ana", Picture: "https://lh3.googleusercontent.com/a/x"}

	t.Run("ok", func(t *testing.T) {
		g := newTestGoogle(t, want)
		got, err := g.Exchange(context.Background(), "good-code")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("bad_code", func(t *testing.T) {
		g := newTestGoogle(t, want)
		_, err := g.Exchange(context.Background(), "bad-code")
		assert.Error(t, err)
	})

	t.Run("incomplete_profile", func(t *testing.T) {
		g := newTestGoogle(t, GoogleProfile{Name: "Nobody"})
		_, err := g.Exchange(context.Background(), "good-code")
		assert.Error(t, err)
	})
}

type fakeUpserter struct {
	got database.UpsertGoogleUserParams
}

func (f *fakeUpserter) UpsertGoogleUser(_ context.Context, arg database.UpsertGoogleUserParams) (database.User, error) {
	f.got = arg
	return database.User{UserID: arg.UserID, Username: arg.Username, Email: arg.Email}, nil
}

func TestLinkGoogleUser(t *testing.T) {
	f := &fakeUpserter{}

	id, err := LinkGoogleUser(context.Background(), f, GoogleProfile{Sub: "1", Email: "bo@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, "bo@example.com", f.got.Username)
	assert.Equal(t, "1", f.got.GoogleSub.String)
}
