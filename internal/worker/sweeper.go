// Package worker runs the background jobs of the chat server.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// MinInterval is the shortest time between two sweeps.
const MinInterval = time.Second

type StaleDeleter interface {
	DeleteStale(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Sweeper deletes image placeholders whose upload never finished, so the
// feed does not show a spinner forever.
type Sweeper struct {
	store    StaleDeleter
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewSweeper removes pending or failed records older than ttl, checking
// every ttl/2 but no more often than MinInterval.
func NewSweeper(store StaleDeleter, ttl time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		ttl:      ttl,
		interval: max(ttl/2, MinInterval),
		now:      time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				slog.WarnContext(ctx, "sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one pass and returns the ids it removed.
func (s *Sweeper) Sweep(ctx context.Context) ([]string, error) {
	ids, err := s.store.DeleteStale(ctx, s.now().Add(-s.ttl))
	if len(ids) > 0 {
		slog.InfoContext(ctx, "removed stale placeholders", "count", len(ids))
	}
	return ids, err
}
