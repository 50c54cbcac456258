package websocket

import (
	"context"
	"log"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/johndosdos/friendlychat/internal/broker"
	"github.com/johndosdos/friendlychat/internal/livequery"
	"github.com/johndosdos/friendlychat/internal/model"
	"github.com/johndosdos/friendlychat/internal/submission"
)

// Member is a connected page as the hub sees it.
type Member interface {
	Key() string
	UserID() uuid.UUID
	Deliver(batch model.ChangeBatch) bool
	SetUser(user *model.SessionUser) bool
	SubmitImage(ctx context.Context, file submission.Upload) error
	Kick()
}

// RecentStore answers the live query.
type RecentStore interface {
	Recent(ctx context.Context, limit int) ([]model.Message, error)
}

type Registration struct {
	Member Member
	Done   chan struct{}
}

// AuthChange tells every page of UserID about a new auth state. A nil
// User signs them out.
type AuthChange struct {
	UserID uuid.UUID
	User   *model.SessionUser
}

type lookupReq struct {
	key   string
	reply chan Member
}

// Hub owns the live query window and fans its change batches out to the
// connected pages.
type Hub struct {
	store      RecentStore
	window     *livequery.Window
	members    map[string]Member
	Register   chan Registration
	Unregister chan Member
	BrokerMsg  chan model.Change
	Auth       chan AuthChange
	lookup     chan lookupReq
}

// NewHub returns a new instance of Hub.
func NewHub(store RecentStore, limit int) *Hub {
	return &Hub{
		store:      store,
		window:     livequery.NewWindow(limit),
		members:    make(map[string]Member),
		Register:   make(chan Registration),
		Unregister: make(chan Member),
		BrokerMsg:  make(chan model.Change, 1024),
		Auth:       make(chan AuthChange, 64),
		lookup:     make(chan lookupReq),
	}
}

// Run loads the window, subscribes to stream when it is not nil, and
// serves hub traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, stream jetstream.Stream) {
	if stream != nil {
		if err := broker.Subscribe(ctx, stream, h.BrokerMsg); err != nil {
			log.Printf("failed to subscribe to broker: %v", err)
		}
	}

	msgs, err := h.store.Recent(ctx, h.window.Limit())
	if err != nil {
		log.Printf("failed to load recent messages: %v", err)
	}
	h.window.Reset(msgs)

	for {
		select {
		case reg := <-h.Register:
			m := reg.Member
			h.members[m.Key()] = m
			if !m.Deliver(h.window.Snapshot()) {
				h.drop(ctx, m)
			}
			close(reg.Done)

		case m := <-h.Unregister:
			if cur, ok := h.members[m.Key()]; ok && cur == m {
				delete(h.members, m.Key())
			}

		case change := <-h.BrokerMsg:
			h.broadcast(ctx, h.apply(ctx, change))

		case ac := <-h.Auth:
			for _, m := range h.members {
				if m.UserID() == ac.UserID && !m.SetUser(ac.User) {
					h.drop(ctx, m)
				}
			}

		case req := <-h.lookup:
			req.reply <- h.members[req.key]

		case <-ctx.Done():
			log.Printf("context cancelled: %v", ctx.Err())
			return
		}
	}
}

func (h *Hub) apply(ctx context.Context, change model.Change) model.ChangeBatch {
	batch, needsBackfill := h.window.Apply(change)
	if !needsBackfill {
		return batch
	}

	msgs, err := h.store.Recent(ctx, h.window.Limit())
	if err != nil {
		slog.WarnContext(ctx, "backfill failed", "error", err)
		return batch
	}
	return append(batch, h.window.Backfill(msgs)...)
}

func (h *Hub) broadcast(ctx context.Context, batch model.ChangeBatch) {
	if len(batch) == 0 {
		return
	}

	for _, m := range h.members {
		if !m.Deliver(batch) {
			h.drop(ctx, m)
		}
	}
}

// drop disconnects a page that cannot keep up. Skipping a batch would
// leave its feed permanently out of step with the query.
func (h *Hub) drop(ctx context.Context, m Member) {
	slog.WarnContext(ctx, "disconnecting slow session", "session_id", m.Key())
	delete(h.members, m.Key())
	m.Kick()
}

// Lookup finds a connected page by its session id.
func (h *Hub) Lookup(ctx context.Context, key string) (Member, bool) {
	reply := make(chan Member, 1)
	select {
	case h.lookup <- lookupReq{key: key, reply: reply}:
	case <-ctx.Done():
		return nil, false
	}

	select {
	case m := <-reply:
		return m, m != nil
	case <-ctx.Done():
		return nil, false
	}
}

// SignOut tells every page of userID that it is signed out.
func (h *Hub) SignOut(ctx context.Context, userID uuid.UUID) {
	select {
	case h.Auth <- AuthChange{UserID: userID}:
	case <-ctx.Done():
	}
}
