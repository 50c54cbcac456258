// Package counter gates text sending on the number of messages the signed-in
// user has already stored.
package counter

import (
	"context"
	"fmt"
)

// DefaultLimit is the number of messages a user may send.
const DefaultLimit = 10

// CountFunc returns the authoritative number of messages authored by the
// current user.
type CountFunc func(ctx context.Context) (int, error)

// Counter is owned by a single session and is not safe for concurrent use.
type Counter struct {
	sent  int
	limit int
}

// New returns a Counter with the given limit. A non-positive limit falls back
// to DefaultLimit.
func New(limit int) *Counter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Counter{limit: limit}
}

// Refresh resets the count when signed out, or replaces it with the result
// of count. A failed count leaves the previous value in place.
func (c *Counter) Refresh(ctx context.Context, signedIn bool, count CountFunc) error {
	if !signedIn {
		c.sent = 0
		return nil
	}

	n, err := count(ctx)
	if err != nil {
		return fmt.Errorf("internal/counter: failed to count messages: %w", err)
	}
	c.sent = n
	return nil
}

// Reset sets the count back to zero.
func (c *Counter) Reset() {
	c.sent = 0
}

// CanSend reports whether a non-empty draft may be sent.
func (c *Counter) CanSend(draft string) bool {
	return draft != "" && c.sent < c.limit
}

// Exhausted reports whether the limit has been reached.
func (c *Counter) Exhausted() bool {
	return c.sent >= c.limit
}

func (c *Counter) Sent() int {
	return c.sent
}

func (c *Counter) Limit() int {
	return c.limit
}
