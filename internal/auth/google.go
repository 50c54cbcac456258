package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/oauth2"

	"github.com/johndosdos/friendlychat/internal/database"
)

const userInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleEndpoint is Google's OAuth 2.0 authorization server.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// GoogleProfile is the part of the OpenID userinfo response we keep.
type GoogleProfile struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type Google struct {
	config      *oauth2.Config
	userInfoURL string
}

func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     GoogleEndpoint,
		},
		userInfoURL: userInfoURL,
	}
}

func (g *Google) AuthURL(state string) string {
	return g.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the user's Google profile.
func (g *Google) Exchange(ctx context.Context, code string) (GoogleProfile, error) {
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("internal/auth: exchanging OAuth code: %w", err)
	}

	resp, err := g.config.Client(ctx, tok).Get(g.userInfoURL)
	if err != nil {
		return GoogleProfile{}, fmt.Errorf("internal/auth: calling userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return GoogleProfile{}, fmt.Errorf("internal/auth: userinfo returned status %d", resp.StatusCode)
	}

	var p GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return GoogleProfile{}, fmt.Errorf("internal/auth: decoding userinfo: %w", err)
	}
	if p.Sub == "" || p.Email == "" {
		return GoogleProfile{}, fmt.Errorf("internal/auth: userinfo is missing sub or email")
	}

	return p, nil
}

type googleUserUpserter interface {
	UpsertGoogleUser(ctx context.Context, arg database.UpsertGoogleUserParams) (database.User, error)
}

// LinkGoogleUser creates or updates the local user for a Google profile.
func LinkGoogleUser(ctx context.Context, db googleUserUpserter, p GoogleProfile) (uuid.UUID, error) {
	name := p.Name
	if name == "" {
		name = p.Email
	}

	u, err := db.UpsertGoogleUser(ctx, database.UpsertGoogleUserParams{
		UserID:     pgtype.UUID{Bytes: uuid.New(), Valid: true},
		Username:   name,
		Email:      p.Email,
		PictureUrl: p.Picture,
		GoogleSub:  pgtype.Text{String: p.Sub, Valid: true},
	})
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("internal/auth: failed to upsert google user: %w", err)
	}

	return u.UserID.Bytes, nil
}
