// Package push registers device tokens and sends an APNs alert to every
// other user's devices when a message is created.
package push

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"github.com/johndosdos/friendlychat/internal/database"
	"github.com/johndosdos/friendlychat/internal/metrics"
	"github.com/johndosdos/friendlychat/internal/model"
)

// Tokens is the device-token registry.
type Tokens interface {
	UpsertDeviceToken(ctx context.Context, arg database.UpsertDeviceTokenParams) error
	ListDeviceTokensExcept(ctx context.Context, userID pgtype.UUID) ([]database.DeviceToken, error)
	DeleteDeviceToken(ctx context.Context, token string) error
}

// Register maps token to userID, replacing any previous owner.
func Register(ctx context.Context, db Tokens, userID uuid.UUID, tok string) error {
	if tok == "" {
		return errors.New("internal/push: empty device token")
	}

	err := db.UpsertDeviceToken(ctx, database.UpsertDeviceTokenParams{
		Token:  tok,
		UserID: pgtype.UUID{Bytes: userID, Valid: true},
	})
	if err != nil {
		return fmt.Errorf("internal/push: failed to store device token: %w", err)
	}

	return nil
}

type pusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

type APNSOptions struct {
	KeyFile    string
	KeyID      string
	TeamID     string
	Topic      string
	Production bool
}

// NewAPNSClient builds a token-authenticated APNs client.
func NewAPNSClient(opts APNSOptions) (*apns2.Client, error) {
	authKey, err := token.AuthKeyFromFile(opts.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("internal/push: failed to read APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   opts.KeyID,
		TeamID:  opts.TeamID,
	})
	if opts.Production {
		return client.Production(), nil
	}
	return client.Development(), nil
}

// Notifier turns created messages into alerts.
type Notifier struct {
	db     Tokens
	client pusher
	topic  string
}

func NewNotifier(db Tokens, client pusher, topic string) *Notifier {
	return &Notifier{db: db, client: client, topic: topic}
}

// Run consumes changes until ctx is cancelled or changes is closed.
func (n *Notifier) Run(ctx context.Context, changes <-chan model.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if change.Kind != model.ChangeUpsert || !change.Created || change.Message == nil {
				continue
			}
			if err := n.Notify(ctx, *change.Message); err != nil {
				log.Printf("internal/push: %v", err)
			}
		}
	}
}

// Notify sends one alert for msg to every device not owned by its author.
// Tokens APNs reports as dead are removed.
func (n *Notifier) Notify(ctx context.Context, msg model.Message) error {
	tokens, err := n.db.ListDeviceTokensExcept(ctx, pgtype.UUID{Bytes: msg.AuthorID, Valid: true})
	if err != nil {
		return fmt.Errorf("internal/push: failed to list device tokens: %w", err)
	}

	p := payload.NewPayload().
		AlertTitle(msg.Name).
		AlertBody(Body(msg)).
		Sound("default").
		Custom("message_id", msg.ID)

	for _, t := range tokens {
		res, err := n.client.PushWithContext(ctx, &apns2.Notification{
			DeviceToken: t.Token,
			Topic:       n.topic,
			Payload:     p,
		})
		if err != nil {
			metrics.PushSent("error")
			slog.WarnContext(ctx, "push failed", "error", err)
			continue
		}

		if res.Sent() {
			metrics.PushSent("sent")
			continue
		}

		metrics.PushSent("rejected")
		if res.Reason == apns2.ReasonUnregistered || res.Reason == apns2.ReasonBadDeviceToken {
			if err := n.db.DeleteDeviceToken(ctx, t.Token); err != nil {
				slog.WarnContext(ctx, "failed to delete dead device token", "error", err)
			}
		}
	}

	return nil
}

// Body is the alert text for msg.
func Body(msg model.Message) string {
	if msg.Text != "" {
		return msg.Name + ": " + msg.Text
	}
	return msg.Name + " sent an image"
}
