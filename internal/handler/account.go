package handler

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	viewAuth "github.com/johndosdos/friendlychat/components/auth"
	"github.com/johndosdos/friendlychat/internal/auth"
	"github.com/johndosdos/friendlychat/internal/database"
)

// AccountStore is the set of queries the account pages use.
type AccountStore interface {
	auth.Store
	GetUserWithPasswordByEmail(ctx context.Context, email string) (database.GetUserWithPasswordByEmailRow, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	CreatePassword(ctx context.Context, arg database.CreatePasswordParams) (database.Password, error)
	UpsertGoogleUser(ctx context.Context, arg database.UpsertGoogleUserParams) (database.User, error)
}

// SignOuter pushes a sign-out to the user's open pages.
type SignOuter interface {
	SignOut(ctx context.Context, userID uuid.UUID)
}

func ServeLoginPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := viewAuth.Login().Render(r.Context(), w); err != nil {
			log.Printf("failed to render component: %v", err)
		}
	}
}

func renderAuthError(ctx context.Context, w http.ResponseWriter, msg string) {
	if err := viewAuth.ErrorMsgAuth(msg).Render(ctx, w); err != nil {
		log.Printf("failed to render component: %v", err)
	}
}

// SubmitLoginForm handles user login.
func SubmitLoginForm(db AccountStore, keys auth.Keys) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data.", http.StatusBadRequest)
			log.Printf("failed to parse form values: %v", err)
			return
		}

		email := strings.TrimSpace(r.PostFormValue("email"))
		password := r.PostFormValue("password")

		user, err := db.GetUserWithPasswordByEmail(ctx, email)
		if err != nil {
			renderAuthError(ctx, w, "Invalid email or password.")
			return
		}

		ok, err := auth.CheckPasswordHash(password, user.HashedPassword)
		if err != nil {
			http.Error(w, "Server error.", http.StatusInternalServerError)
			log.Printf("cannot verify password, hash may be corrupted: %v", err)
			return
		}
		if !ok {
			renderAuthError(ctx, w, "Invalid email or password.")
			return
		}

		if err := auth.SetTokensAndCookies(ctx, w, db, keys, user.UserID.Bytes); err != nil {
			http.Error(w, "Server error.", http.StatusInternalServerError)
			log.Printf("%v", err)
			return
		}

		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)

		slog.InfoContext(ctx, "user logged in",
			slog.String("username", user.Username))
	}
}

func ServeSignupPage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := viewAuth.Signup().Render(r.Context(), w); err != nil {
			log.Printf("failed to render component: %v", err)
		}
	}
}

// SubmitSignupForm handles user account creation.
func SubmitSignupForm(db AccountStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data.", http.StatusBadRequest)
			log.Printf("failed to parse form values: %v", err)
			return
		}

		username := strings.TrimSpace(r.PostFormValue("username"))
		email := strings.TrimSpace(r.PostFormValue("email"))
		password := r.PostFormValue("password")

		if username == "" || email == "" || password == "" {
			renderAuthError(ctx, w, "All fields are required.")
			return
		}
		if password != r.PostFormValue("confirm_password") {
			renderAuthError(ctx, w, "Passwords do not match!")
			return
		}

		hashedPw, err := auth.HashPassword(password)
		if err != nil {
			http.Error(w, "Server error.", http.StatusInternalServerError)
			log.Printf("argon2id hash creation failed: %v", err)
			return
		}

		user, err := db.CreateUser(ctx, database.CreateUserParams{
			UserID:   pgtype.UUID{Bytes: uuid.New(), Valid: true},
			Username: username,
			Email:    email,
		})
		if err != nil {
			renderAuthError(ctx, w, "That email is already registered.")
			log.Printf("failed to create user entry in database: %v", err)
			return
		}

		_, err = db.CreatePassword(ctx, database.CreatePasswordParams{
			UserID:         user.UserID,
			HashedPassword: hashedPw,
			CreatedAt:      pgtype.Timestamptz{Time: time.Now().UTC(), Valid: true},
		})
		if err != nil {
			http.Error(w, "Database error.", http.StatusInternalServerError)
			log.Printf("failed to create password entry in database: %v", err)
			return
		}

		w.Header().Set("HX-Redirect", "/account/login")
		w.WriteHeader(http.StatusOK)

		slog.InfoContext(ctx, "user signed up",
			slog.String("username", user.Username))
	}
}

// SubmitLogoutReq revokes the user's refresh token, signs out their open
// chat pages, and redirects to the chat page.
func SubmitLogoutReq(db AccountStore, hub SignOuter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if c, err := r.Cookie(auth.RefreshTokenCookie); err == nil {
			if owner, err := db.GetUserFromRefreshTok(ctx, c.Value); err == nil {
				hub.SignOut(ctx, owner.Bytes)
			}
		}

		if err := auth.EndSession(w, r, db); err != nil {
			log.Printf("failed to process token deletion: %v", err)
		}

		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", "/")
			w.WriteHeader(http.StatusOK)
		} else {
			http.Redirect(w, r, "/", http.StatusSeeOther)
		}

		log.Printf("user logged out")
	}
}
