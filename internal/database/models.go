package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	UserID     pgtype.UUID
	Username   string
	Email      string
	PictureUrl string
	GoogleSub  pgtype.Text
	CreatedAt  pgtype.Timestamptz
}

type Password struct {
	UserID         pgtype.UUID
	HashedPassword string
	CreatedAt      pgtype.Timestamptz
}

type RefreshToken struct {
	Token     string
	UserID    pgtype.UUID
	CreatedAt pgtype.Timestamptz
	ExpiresAt pgtype.Timestamptz
	RevokedAt pgtype.Timestamptz
}

type Message struct {
	ID            string
	AuthorID      pgtype.UUID
	Name          string
	Text          string
	ImageUrl      string
	ProfilePicUrl string
	StorageUri    string
	Status        string
	CreatedAt     pgtype.Timestamptz
}

type DeviceToken struct {
	Token     string
	UserID    pgtype.UUID
	CreatedAt pgtype.Timestamptz
}
