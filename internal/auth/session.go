package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/johndosdos/friendlychat/internal/database"
	"github.com/johndosdos/friendlychat/internal/model"
)

const (
	JWTCookie          = "jwt"
	RefreshTokenCookie = "refresh_token"

	JWTExpiry          = 5 * time.Minute
	RefreshTokenExpiry = 7 * 24 * time.Hour
)

// ErrNoSession means the request has no refresh token cookie.
var ErrNoSession = errors.New("internal/auth: no refresh token")

// Store is the subset of queries the session helpers need.
type Store interface {
	refreshTokenCreator
	GetUserFromRefreshTok(ctx context.Context, token string) (pgtype.UUID, error)
	RevokeRefreshToken(ctx context.Context, token string) error
	GetUserById(ctx context.Context, userID pgtype.UUID) (database.User, error)
}

// Keys signs and verifies access tokens.
type Keys struct {
	Secret string
	Issuer string
}

// SetTokensAndCookies starts a session for userID: a new refresh token is
// stored and both cookies are written.
func SetTokensAndCookies(ctx context.Context, w http.ResponseWriter, db Store, keys Keys, userID uuid.UUID) error {
	refreshTok, err := MakeRefreshToken(ctx, db, userID, RefreshTokenExpiry)
	if err != nil {
		return err
	}

	jwtString, err := MakeJWT(userID, keys.Secret, keys.Issuer, JWTExpiry)
	if err != nil {
		return fmt.Errorf("internal/auth: failed to make JWT: %w", err)
	}

	setCookie(w, RefreshTokenCookie, refreshTok, int(RefreshTokenExpiry/time.Second))
	setCookie(w, JWTCookie, jwtString, int(JWTExpiry/time.Second))
	return nil
}

// RefreshSession issues a new JWT from a live refresh token cookie.
func RefreshSession(w http.ResponseWriter, r *http.Request, db Store, keys Keys) (uuid.UUID, error) {
	refreshTokCookie, err := r.Cookie(RefreshTokenCookie)
	if err != nil {
		return uuid.UUID{}, ErrNoSession
	}

	userID, err := db.GetUserFromRefreshTok(r.Context(), refreshTokCookie.Value)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("internal/auth: failed to retrieve user from refresh token: %w", err)
	}

	jwtString, err := MakeJWT(userID.Bytes, keys.Secret, keys.Issuer, JWTExpiry)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("internal/auth: failed to make JWT: %w", err)
	}

	setCookie(w, JWTCookie, jwtString, int(JWTExpiry/time.Second))
	return userID.Bytes, nil
}

// EndSession revokes the refresh token, if any, and clears both cookies.
func EndSession(w http.ResponseWriter, r *http.Request, db Store) error {
	var err error
	if c, cerr := r.Cookie(RefreshTokenCookie); cerr == nil {
		if rerr := db.RevokeRefreshToken(r.Context(), c.Value); rerr != nil {
			err = fmt.Errorf("internal/auth: failed to revoke refresh token: %w", rerr)
		}
	}

	setCookie(w, JWTCookie, "", -1)
	setCookie(w, RefreshTokenCookie, "", -1)
	return err
}

// LoadUser turns a user ID into the identity a chat session observes.
func LoadUser(ctx context.Context, db Store, userID uuid.UUID) (*model.SessionUser, error) {
	u, err := db.GetUserById(ctx, pgtype.UUID{Bytes: userID, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("internal/auth: failed to load user %s: %w", userID, err)
	}

	return &model.SessionUser{
		ID:          userID,
		DisplayName: u.Username,
		PhotoURL:    u.PictureUrl,
	}, nil
}

func setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
