package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createUser = `INSERT INTO users (user_id, username, email, picture_url)
VALUES ($1, $2, $3, $4)
RETURNING user_id, username, email, picture_url, google_sub, created_at`

type CreateUserParams struct {
	UserID     pgtype.UUID
	Username   string
	Email      string
	PictureUrl string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser, arg.UserID, arg.Username, arg.Email, arg.PictureUrl)
	var i User
	err := row.Scan(&i.UserID, &i.Username, &i.Email, &i.PictureUrl, &i.GoogleSub, &i.CreatedAt)
	return i, err
}

const upsertGoogleUser = `INSERT INTO users (user_id, username, email, picture_url, google_sub)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (email) DO UPDATE
SET username = EXCLUDED.username,
    picture_url = EXCLUDED.picture_url,
    google_sub = EXCLUDED.google_sub
RETURNING user_id, username, email, picture_url, google_sub, created_at`

type UpsertGoogleUserParams struct {
	UserID     pgtype.UUID
	Username   string
	Email      string
	PictureUrl string
	GoogleSub  pgtype.Text
}

// UpsertGoogleUser links a Google account to the user with the same email,
// creating the user on first sign-in. UserID is only used for new rows.
func (q *Queries) UpsertGoogleUser(ctx context.Context, arg UpsertGoogleUserParams) (User, error) {
	row := q.db.QueryRow(ctx, upsertGoogleUser,
		arg.UserID, arg.Username, arg.Email, arg.PictureUrl, arg.GoogleSub)
	var i User
	err := row.Scan(&i.UserID, &i.Username, &i.Email, &i.PictureUrl, &i.GoogleSub, &i.CreatedAt)
	return i, err
}

const getUserById = `SELECT user_id, username, email, picture_url, google_sub, created_at
FROM users
WHERE user_id = $1`

func (q *Queries) GetUserById(ctx context.Context, userID pgtype.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUserById, userID)
	var i User
	err := row.Scan(&i.UserID, &i.Username, &i.Email, &i.PictureUrl, &i.GoogleSub, &i.CreatedAt)
	return i, err
}

const getUserWithPasswordByEmail = `SELECT u.user_id, u.username, u.email, p.hashed_password
FROM users u
JOIN passwords p ON p.user_id = u.user_id
WHERE u.email = $1`

type GetUserWithPasswordByEmailRow struct {
	UserID         pgtype.UUID
	Username       string
	Email          string
	HashedPassword string
}

func (q *Queries) GetUserWithPasswordByEmail(ctx context.Context, email string) (GetUserWithPasswordByEmailRow, error) {
	row := q.db.QueryRow(ctx, getUserWithPasswordByEmail, email)
	var i GetUserWithPasswordByEmailRow
	err := row.Scan(&i.UserID, &i.Username, &i.Email, &i.HashedPassword)
	return i, err
}

const createPassword = `INSERT INTO passwords (user_id, hashed_password, created_at)
VALUES ($1, $2, $3)
RETURNING user_id, hashed_password, created_at`

type CreatePasswordParams struct {
	UserID         pgtype.UUID
	HashedPassword string
	CreatedAt      pgtype.Timestamptz
}

func (q *Queries) CreatePassword(ctx context.Context, arg CreatePasswordParams) (Password, error) {
	row := q.db.QueryRow(ctx, createPassword, arg.UserID, arg.HashedPassword, arg.CreatedAt)
	var i Password
	err := row.Scan(&i.UserID, &i.HashedPassword, &i.CreatedAt)
	return i, err
}
