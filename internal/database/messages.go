package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const messageColumns = `id, author_id, name, text, image_url, profile_pic_url, storage_uri, status, created_at`

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var i Message
	err := row.Scan(&i.ID, &i.AuthorID, &i.Name, &i.Text, &i.ImageUrl,
		&i.ProfilePicUrl, &i.StorageUri, &i.Status, &i.CreatedAt)
	return i, err
}

const createMessage = `INSERT INTO messages (id, author_id, name, text, image_url, profile_pic_url, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + messageColumns

type CreateMessageParams struct {
	ID            string
	AuthorID      pgtype.UUID
	Name          string
	Text          string
	ImageUrl      string
	ProfilePicUrl string
	Status        string
}

// CreateMessage inserts a record; created_at is assigned by the database.
func (q *Queries) CreateMessage(ctx context.Context, arg CreateMessageParams) (Message, error) {
	row := q.db.QueryRow(ctx, createMessage, arg.ID, arg.AuthorID, arg.Name, arg.Text,
		arg.ImageUrl, arg.ProfilePicUrl, arg.Status)
	return scanMessage(row)
}

const completeMessageImage = `UPDATE messages
SET image_url = $2, storage_uri = $3, status = 'complete'
WHERE id = $1
RETURNING ` + messageColumns

type CompleteMessageImageParams struct {
	ID         string
	ImageUrl   string
	StorageUri string
}

func (q *Queries) CompleteMessageImage(ctx context.Context, arg CompleteMessageImageParams) (Message, error) {
	row := q.db.QueryRow(ctx, completeMessageImage, arg.ID, arg.ImageUrl, arg.StorageUri)
	return scanMessage(row)
}

const setMessageStatus = `UPDATE messages
SET status = $2
WHERE id = $1
RETURNING ` + messageColumns

type SetMessageStatusParams struct {
	ID     string
	Status string
}

func (q *Queries) SetMessageStatus(ctx context.Context, arg SetMessageStatusParams) (Message, error) {
	row := q.db.QueryRow(ctx, setMessageStatus, arg.ID, arg.Status)
	return scanMessage(row)
}

const getMessage = `SELECT ` + messageColumns + `
FROM messages
WHERE id = $1`

func (q *Queries) GetMessage(ctx context.Context, id string) (Message, error) {
	return scanMessage(q.db.QueryRow(ctx, getMessage, id))
}

const countMessagesByAuthor = `SELECT count(*)
FROM messages
WHERE author_id = $1`

func (q *Queries) CountMessagesByAuthor(ctx context.Context, authorID pgtype.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countMessagesByAuthor, authorID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listRecentMessages = `SELECT ` + messageColumns + `
FROM messages
ORDER BY created_at DESC, id DESC
LIMIT $1`

func (q *Queries) ListRecentMessages(ctx context.Context, limit int32) ([]Message, error) {
	rows, err := q.db.Query(ctx, listRecentMessages, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Message
	for rows.Next() {
		i, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteStaleMessages = `DELETE FROM messages
WHERE status <> 'complete'
  AND created_at < $1
RETURNING id`

// DeleteStaleMessages removes placeholders that never completed.
func (q *Queries) DeleteStaleMessages(ctx context.Context, before pgtype.Timestamptz) ([]string, error) {
	rows, err := q.db.Query(ctx, deleteStaleMessages, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
