// Package auth issues and checks the JWT and refresh-token cookies that
// identify a signed-in user.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/johndosdos/friendlychat/internal/database"
)

type ContextKey string

const UserIDKey ContextKey = "userId"

// ErrNoUser is returned when the request carries no usable identity.
var ErrNoUser = errors.New("internal/auth: no user in context")

func HashPassword(password string) (string, error) {
	hashedPw, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return "", fmt.Errorf("internal/auth: pw hash failed: %w", err)
	}

	return hashedPw, nil
}

func CheckPasswordHash(password, hash string) (bool, error) {
	isMatch, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return false, fmt.Errorf("internal/auth: pw and hash comparison failed: %w", err)
	}

	return isMatch, nil
}

func MakeJWT(userID uuid.UUID, tokenSecret, issuer string, expiresIn time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
	})

	return token.SignedString([]byte(tokenSecret))
}

func ValidateJWT(tokenString, tokenSecret string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(tokenSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("internal/auth: failed to parse token: %w", err)
	}

	if !token.Valid {
		return uuid.UUID{}, errors.New("internal/auth: token is invalid")
	}

	if claims.Subject == "" {
		return uuid.UUID{}, errors.New("internal/auth: subject claim is missing")
	}

	return uuid.Parse(claims.Subject)
}

// GetUserFromContext returns the user ID stored by the middleware.
func GetUserFromContext(ctx context.Context) (uuid.UUID, error) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.UUID{}, ErrNoUser
	}

	return userID, nil
}

type refreshTokenCreator interface {
	CreateRefreshToken(ctx context.Context, arg database.CreateRefreshTokenParams) (database.RefreshToken, error)
}

func MakeRefreshToken(ctx context.Context, db refreshTokenCreator, userID uuid.UUID, expiresIn time.Duration) (string, error) {
	rnd := make([]byte, 32)

	// rand.Read() never returns an error.
	_, _ = rand.Read(rnd)
	rndStr := hex.EncodeToString(rnd)

	now := time.Now().UTC()
	refreshToken, err := db.CreateRefreshToken(ctx, database.CreateRefreshTokenParams{
		Token:     rndStr,
		CreatedAt: pgtype.Timestamptz{Time: now, Valid: true},
		UserID:    pgtype.UUID{Bytes: userID, Valid: true},
		ExpiresAt: pgtype.Timestamptz{Time: now.Add(expiresIn), Valid: true},
	})
	if err != nil {
		return "", fmt.Errorf("internal/auth: database error: %w", err)
	}

	return refreshToken.Token, nil
}
