package push

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/friendlychat/internal/database"
	"github.com/johndosdos/friendlychat/internal/model"
)

type fakeTokens struct {
	mu      sync.Mutex
	owners  map[string]uuid.UUID
	deleted []string
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{owners: make(map[string]uuid.UUID)}
}

func (f *fakeTokens) UpsertDeviceToken(_ context.Context, arg database.UpsertDeviceTokenParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners[arg.Token] = arg.UserID.Bytes
	return nil
}

func (f *fakeTokens) ListDeviceTokensExcept(_ context.Context, userID pgtype.UUID) ([]database.DeviceToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []database.DeviceToken
	for tok, owner := range f.owners {
		if owner != userID.Bytes {
			out = append(out, database.DeviceToken{Token: tok, UserID: pgtype.UUID{Bytes: owner, Valid: true}})
		}
	}
	return out, nil
}

func (f *fakeTokens) DeleteDeviceToken(_ context.Context, tok string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.owners, tok)
	f.deleted = append(f.deleted, tok)
	return nil
}

type fakePusher struct {
	mu      sync.Mutex
	sent    []*apns2.Notification
	reasons map[string]string
}

func (p *fakePusher) PushWithContext(_ apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
	if reason, ok := p.reasons[n.DeviceToken]; ok {
		if reason == "" {
			return nil, errors.New("connection reset")
		}
		return &apns2.Response{StatusCode: http.StatusGone, Reason: reason}, nil
	}
	return &apns2.Response{StatusCode: http.StatusOK}, nil
}

func (p *fakePusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

var (
	ana = uuid.MustParse("6a2f41a0-6a2b-4c7e-9d9e-9f4b0d1e2a01")
	bo  = uuid.MustParse("6a2f41a0-6a2b-4c7e-9d9e-9f4b0d1e2a02")
	cy  = uuid.MustParse("6a2f41a0-6a2b-4c7e-9d9e-9f4b0d1e2a03")
)

func TestRegister(t *testing.T) {
	db := newFakeTokens()

	require.NoError(t, Register(context.Background(), db, ana, "tok"))
	require.NoError(t, Register(context.Background(), db, bo, "tok"))
	assert.Equal(t, bo, db.owners["tok"])

	assert.Error(t, Register(context.Background(), db, ana, ""))
}

func TestBody(t *testing.T) {
	assert.Equal(t, "Ana: hi", Body(model.Message{Name: "Ana", Text: "hi"}))
	assert.Equal(t, "Ana sent an image", Body(model.Message{Name: "Ana", ImageURL: "x"}))
}

func TestNotifySkipsAuthor(t *testing.T) {
	db := newFakeTokens()
	db.owners["ana-phone"] = ana
	db.owners["bo-phone"] = bo
	client := &fakePusher{}

	n := NewNotifier(db, client, "com.example.chat")
	require.NoError(t, n.Notify(context.Background(), model.Message{ID: "m1", AuthorID: ana, Name: "Ana", Text: "hi"}))

	require.Len(t, client.sent, 1)
	assert.Equal(t, "bo-phone", client.sent[0].DeviceToken)
	assert.Equal(t, "com.example.chat", client.sent[0].Topic)
}

func TestNotifyDropsDeadTokens(t *testing.T) {
	db := newFakeTokens()
	db.owners["gone"] = bo
	db.owners["bad"] = cy
	db.owners["flaky"] = cy
	db.owners["ok"] = bo
	client := &fakePusher{reasons: map[string]string{
		"gone":  apns2.ReasonUnregistered,
		"bad":   apns2.ReasonBadDeviceToken,
		"flaky": "",
	}}

	n := NewNotifier(db, client, "topic")
	require.NoError(t, n.Notify(context.Background(), model.Message{ID: "m1", AuthorID: ana, Name: "Ana"}))

	assert.Equal(t, 4, client.count())
	assert.ElementsMatch(t, []string{"gone", "bad"}, db.deleted)
	assert.Contains(t, db.owners, "flaky")
	assert.Contains(t, db.owners, "ok")
}

func TestRunOnlyCreated(t *testing.T) {
	db := newFakeTokens()
	db.owners["bo-phone"] = bo
	client := &fakePusher{}
	n := NewNotifier(db, client, "topic")

	msg := model.Message{ID: "m1", AuthorID: ana, Name: "Ana", Text: "hi"}
	created := model.Upsert(msg)
	created.Created = true

	changes := make(chan model.Change, 4)
	changes <- model.Upsert(msg)
	changes <- model.Remove("m0")
	changes <- created
	close(changes)

	n.Run(context.Background(), changes)
	assert.Equal(t, 1, client.count())
}
