package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/friendlychat/internal/model"
	"github.com/johndosdos/friendlychat/internal/submission"
)

type fakeMember struct {
	key    string
	userID uuid.UUID
	full   bool

	mu      sync.Mutex
	batches []model.ChangeBatch
	users   []*model.SessionUser
	kicked  bool
}

func (m *fakeMember) Key() string       { return m.key }
func (m *fakeMember) UserID() uuid.UUID { return m.userID }

func (m *fakeMember) Deliver(batch model.ChangeBatch) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full {
		return false
	}
	m.batches = append(m.batches, batch)
	return true
}

func (m *fakeMember) SetUser(user *model.SessionUser) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, user)
	return true
}

func (m *fakeMember) SubmitImage(context.Context, submission.Upload) error { return nil }

func (m *fakeMember) Kick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kicked = true
}

func (m *fakeMember) received() []model.ChangeBatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ChangeBatch(nil), m.batches...)
}

func (m *fakeMember) wasKicked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.kicked
}

type fakeRecent struct {
	mu   sync.Mutex
	msgs []model.Message
}

func (f *fakeRecent) Recent(_ context.Context, limit int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) > limit {
		return append([]model.Message(nil), f.msgs[:limit]...), nil
	}
	return append([]model.Message(nil), f.msgs...), nil
}

func (f *fakeRecent) set(msgs ...model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = msgs
}

func msgAt(id string, sec int) model.Message {
	t := time.Unix(int64(sec), 0).UTC()
	return model.Message{ID: id, Text: id, CreatedAt: &t}
}

func startHub(t *testing.T, store RecentStore, limit int) *Hub {
	t.Helper()
	h := NewHub(store, limit)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx, nil)
	return h
}

func register(h *Hub, m Member) {
	reg := Registration{Member: m, Done: make(chan struct{})}
	h.Register <- reg
	<-reg.Done
}

func ids(batch model.ChangeBatch) []string {
	out := make([]string, len(batch))
	for i, c := range batch {
		out[i] = string(c.Kind) + ":" + c.ID
	}
	return out
}

func TestRegisterSendsSnapshot(t *testing.T) {
	store := &fakeRecent{}
	store.set(msgAt("c", 30), msgAt("b", 20), msgAt("a", 10))
	h := startHub(t, store, 2)

	m := &fakeMember{key: "s1"}
	register(h, m)

	got := m.received()
	require.Len(t, got, 1)
	assert.Equal(t, []string{"upsert:c", "upsert:b"}, ids(got[0]))
}

func TestBroadcastEvictsOldest(t *testing.T) {
	store := &fakeRecent{}
	store.set(msgAt("b", 20), msgAt("a", 10))
	h := startHub(t, store, 2)

	m := &fakeMember{key: "s1"}
	register(h, m)

	h.BrokerMsg <- model.Upsert(msgAt("c", 30))
	require.Eventually(t, func() bool { return len(m.received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"upsert:c", "remove:a"}, ids(m.received()[1]))

	// Older than everything in a full window: nothing to emit.
	h.BrokerMsg <- model.Upsert(msgAt("old", 1))
	h.BrokerMsg <- model.Upsert(msgAt("d", 40))
	require.Eventually(t, func() bool { return len(m.received()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"upsert:d", "remove:b"}, ids(m.received()[2]))
}

func TestRemoveBackfills(t *testing.T) {
	store := &fakeRecent{}
	store.set(msgAt("c", 30), msgAt("b", 20))
	h := startHub(t, store, 2)

	m := &fakeMember{key: "s1"}
	register(h, m)

	store.set(msgAt("b", 20), msgAt("a", 10))
	h.BrokerMsg <- model.Remove("c")

	require.Eventually(t, func() bool { return len(m.received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"remove:c", "upsert:a"}, ids(m.received()[1]))
}

func TestSlowMemberIsDropped(t *testing.T) {
	h := startHub(t, &fakeRecent{}, 12)

	slow := &fakeMember{key: "slow"}
	fast := &fakeMember{key: "fast"}
	register(h, slow)
	register(h, fast)

	slow.mu.Lock()
	slow.full = true
	slow.mu.Unlock()

	h.BrokerMsg <- model.Upsert(msgAt("a", 1))
	require.Eventually(t, slow.wasKicked, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(fast.received()) == 2 }, time.Second, 5*time.Millisecond)

	_, ok := h.Lookup(context.Background(), "slow")
	assert.False(t, ok)
	_, ok = h.Lookup(context.Background(), "fast")
	assert.True(t, ok)
}

func TestSignOutTargetsUser(t *testing.T) {
	h := startHub(t, &fakeRecent{}, 12)
	ana := uuid.New()

	mine := &fakeMember{key: "a", userID: ana}
	other := &fakeMember{key: "b", userID: uuid.New()}
	register(h, mine)
	register(h, other)

	h.SignOut(context.Background(), ana)

	require.Eventually(t, func() bool {
		mine.mu.Lock()
		defer mine.mu.Unlock()
		return len(mine.users) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Nil(t, mine.users[0])

	// Lookup is served by the same loop, so the broadcast has finished.
	h.Lookup(context.Background(), "b")
	other.mu.Lock()
	defer other.mu.Unlock()
	assert.Empty(t, other.users)
}

func TestUnregister(t *testing.T) {
	h := startHub(t, &fakeRecent{}, 12)
	m := &fakeMember{key: "s1"}
	register(h, m)

	h.Unregister <- m
	_, ok := h.Lookup(context.Background(), "s1")
	assert.False(t, ok)
}

func TestLookupCancelled(t *testing.T) {
	h := NewHub(&fakeRecent{}, 12)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := h.Lookup(ctx, "s1")
	assert.False(t, ok)
}
