// Package livestore is the structured live store: message records in
// Postgres, with every write published as a change on the broker.
package livestore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/johndosdos/friendlychat/internal/database"
	"github.com/johndosdos/friendlychat/internal/model"
)

type queries interface {
	CreateMessage(ctx context.Context, arg database.CreateMessageParams) (database.Message, error)
	CompleteMessageImage(ctx context.Context, arg database.CompleteMessageImageParams) (database.Message, error)
	SetMessageStatus(ctx context.Context, arg database.SetMessageStatusParams) (database.Message, error)
	GetMessage(ctx context.Context, id string) (database.Message, error)
	CountMessagesByAuthor(ctx context.Context, authorID pgtype.UUID) (int64, error)
	ListRecentMessages(ctx context.Context, limit int32) ([]database.Message, error)
	DeleteStaleMessages(ctx context.Context, before pgtype.Timestamptz) ([]string, error)
}

type publisher interface {
	Publish(ctx context.Context, change model.Change) (uint64, error)
}

type Store struct {
	db  queries
	pub publisher
}

func New(db queries, pub publisher) *Store {
	return &Store{db: db, pub: pub}
}

// CreateMessage stores msg and publishes it as a created upsert. The
// returned message carries the store-assigned timestamp.
func (s *Store) CreateMessage(ctx context.Context, msg model.Message) (model.Message, error) {
	if msg.Status == "" {
		msg.Status = model.StatusComplete
	}

	row, err := s.db.CreateMessage(ctx, database.CreateMessageParams{
		ID:            msg.ID,
		AuthorID:      pgtype.UUID{Bytes: msg.AuthorID, Valid: true},
		Name:          msg.Name,
		Text:          msg.Text,
		ImageUrl:      msg.ImageURL,
		ProfilePicUrl: msg.ProfilePicURL,
		Status:        string(msg.Status),
	})
	if err != nil {
		return model.Message{}, fmt.Errorf("internal/livestore: failed to create message: %w", err)
	}

	created := toModel(row)
	change := model.Upsert(created)
	change.Created = true
	if err := s.publish(ctx, change); err != nil {
		return created, err
	}

	return created, nil
}

// CompleteImage sets the final image of a placeholder record.
func (s *Store) CompleteImage(ctx context.Context, id, imageURL, storageURI string) error {
	row, err := s.db.CompleteMessageImage(ctx, database.CompleteMessageImageParams{
		ID:         id,
		ImageUrl:   imageURL,
		StorageUri: storageURI,
	})
	if err != nil {
		return fmt.Errorf("internal/livestore: failed to complete message %s: %w", id, err)
	}
	return s.publish(ctx, model.Upsert(toModel(row)))
}

// FailMessage marks a placeholder whose upload did not finish.
func (s *Store) FailMessage(ctx context.Context, id string) error {
	row, err := s.db.SetMessageStatus(ctx, database.SetMessageStatusParams{
		ID:     id,
		Status: string(model.StatusFailed),
	})
	if err != nil {
		return fmt.Errorf("internal/livestore: failed to mark message %s failed: %w", id, err)
	}
	return s.publish(ctx, model.Upsert(toModel(row)))
}

func (s *Store) GetMessage(ctx context.Context, id string) (model.Message, error) {
	row, err := s.db.GetMessage(ctx, id)
	if err != nil {
		return model.Message{}, fmt.Errorf("internal/livestore: failed to read message %s: %w", id, err)
	}
	return toModel(row), nil
}

func (s *Store) CountByAuthor(ctx context.Context, authorID uuid.UUID) (int, error) {
	n, err := s.db.CountMessagesByAuthor(ctx, pgtype.UUID{Bytes: authorID, Valid: true})
	if err != nil {
		return 0, fmt.Errorf("internal/livestore: failed to count messages: %w", err)
	}
	return int(n), nil
}

// Recent returns the newest limit messages, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]model.Message, error) {
	rows, err := s.db.ListRecentMessages(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("internal/livestore: failed to list messages: %w", err)
	}

	msgs := make([]model.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, toModel(row))
	}
	return msgs, nil
}

// DeleteStale removes placeholders created before cutoff that never
// completed, publishing a remove for each. It returns the removed ids.
func (s *Store) DeleteStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := s.db.DeleteStaleMessages(ctx, pgtype.Timestamptz{Time: cutoff, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("internal/livestore: failed to delete stale messages: %w", err)
	}

	for _, id := range ids {
		if err := s.publish(ctx, model.Remove(id)); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

func (s *Store) publish(ctx context.Context, change model.Change) error {
	if _, err := s.pub.Publish(ctx, change); err != nil {
		return fmt.Errorf("internal/livestore: stored but not published: %w", err)
	}
	return nil
}

func toModel(row database.Message) model.Message {
	msg := model.Message{
		ID:            row.ID,
		AuthorID:      row.AuthorID.Bytes,
		Name:          row.Name,
		Text:          row.Text,
		ImageURL:      row.ImageUrl,
		ProfilePicURL: row.ProfilePicUrl,
		StorageURI:    row.StorageUri,
		Status:        model.MessageStatus(row.Status),
	}
	if row.CreatedAt.Valid {
		t := row.CreatedAt.Time.UTC()
		msg.CreatedAt = &t
	}
	return msg
}
