// Package livequery maintains the result set of the "newest N messages"
// query and turns store changes into the change batches that query emits.
package livequery

import (
	"sort"
	"time"

	"github.com/johndosdos/friendlychat/internal/model"
)

// DefaultLimit is the page size of the feed.
const DefaultLimit = 12

// Window holds the newest Limit messages, ordered by timestamp descending.
// It is not safe for concurrent use.
type Window struct {
	limit int
	msgs  []model.Message
}

func NewWindow(limit int) *Window {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Window{limit: limit}
}

func (w *Window) Limit() int {
	return w.limit
}

// Reset replaces the window content with msgs, which may be in any order.
func (w *Window) Reset(msgs []model.Message) {
	w.msgs = append(w.msgs[:0], msgs...)
	w.sort()
	if len(w.msgs) > w.limit {
		w.msgs = w.msgs[:w.limit]
	}
}

// Snapshot returns the window as upserts in query order, newest first.
func (w *Window) Snapshot() model.ChangeBatch {
	batch := make(model.ChangeBatch, 0, len(w.msgs))
	for _, m := range w.msgs {
		batch = append(batch, model.Upsert(m))
	}
	return batch
}

// Apply folds one store change into the window. It returns the changes the
// query emits, and whether a removal left room that must be backfilled from
// the store.
func (w *Window) Apply(change model.Change) (model.ChangeBatch, bool) {
	switch change.Kind {
	case model.ChangeRemove:
		i := w.index(change.ID)
		if i < 0 {
			return nil, false
		}
		w.msgs = append(w.msgs[:i], w.msgs[i+1:]...)
		return model.ChangeBatch{change}, true

	case model.ChangeUpsert:
		if change.Message == nil {
			return nil, false
		}
		msg := *change.Message

		if i := w.index(msg.ID); i >= 0 {
			w.msgs[i] = msg
			w.sort()
			return model.ChangeBatch{change}, false
		}

		if len(w.msgs) >= w.limit && !newer(msg, w.msgs[len(w.msgs)-1]) {
			return nil, false
		}

		w.msgs = append(w.msgs, msg)
		w.sort()

		batch := model.ChangeBatch{change}
		for len(w.msgs) > w.limit {
			evicted := w.msgs[len(w.msgs)-1]
			w.msgs = w.msgs[:len(w.msgs)-1]
			batch = append(batch, model.Remove(evicted.ID))
		}
		return batch, false
	}

	return nil, false
}

// Backfill merges the store's current newest messages after a removal and
// returns upserts for the ones that entered the window.
func (w *Window) Backfill(newest []model.Message) model.ChangeBatch {
	var batch model.ChangeBatch
	for _, m := range newest {
		if len(w.msgs) >= w.limit {
			break
		}
		if w.index(m.ID) >= 0 {
			continue
		}
		if len(w.msgs) > 0 && newer(m, w.msgs[len(w.msgs)-1]) {
			// Newer than the oldest entry but unknown: the broker change is
			// still in flight and will arrive as an upsert.
			continue
		}
		w.msgs = append(w.msgs, m)
		batch = append(batch, model.Upsert(m))
	}
	w.sort()
	return batch
}

// IDs returns the window in query order.
func (w *Window) IDs() []string {
	ids := make([]string, len(w.msgs))
	for i, m := range w.msgs {
		ids[i] = m.ID
	}
	return ids
}

func (w *Window) index(id string) int {
	for i, m := range w.msgs {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (w *Window) sort() {
	sort.SliceStable(w.msgs, func(i, j int) bool {
		return newer(w.msgs[i], w.msgs[j])
	})
}

// newer orders pending writes first, as the store will stamp them with a
// time later than anything already stored.
func newer(a, b model.Message) bool {
	return stamp(a).After(stamp(b))
}

func stamp(m model.Message) time.Time {
	if m.CreatedAt == nil {
		return time.Unix(1<<62, 0)
	}
	return *m.CreatedAt
}
