package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const upsertDeviceToken = `INSERT INTO device_tokens (token, user_id)
VALUES ($1, $2)
ON CONFLICT (token) DO UPDATE SET user_id = EXCLUDED.user_id`

type UpsertDeviceTokenParams struct {
	Token  string
	UserID pgtype.UUID
}

func (q *Queries) UpsertDeviceToken(ctx context.Context, arg UpsertDeviceTokenParams) error {
	_, err := q.db.Exec(ctx, upsertDeviceToken, arg.Token, arg.UserID)
	return err
}

const listDeviceTokensExcept = `SELECT token, user_id, created_at
FROM device_tokens
WHERE user_id <> $1`

func (q *Queries) ListDeviceTokensExcept(ctx context.Context, userID pgtype.UUID) ([]DeviceToken, error) {
	rows, err := q.db.Query(ctx, listDeviceTokensExcept, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []DeviceToken
	for rows.Next() {
		var i DeviceToken
		if err := rows.Scan(&i.Token, &i.UserID, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const deleteDeviceToken = `DELETE FROM device_tokens
WHERE token = $1`

func (q *Queries) DeleteDeviceToken(ctx context.Context, token string) error {
	_, err := q.db.Exec(ctx, deleteDeviceToken, token)
	return err
}
