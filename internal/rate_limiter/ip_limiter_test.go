package ratelimiter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		want   string
	}{
		{"remote_addr", "10.0.0.1:5555", "", "10.0.0.1"},
		{"forwarded_last_hop", "10.0.0.1:5555", "1.1.1.1, 2.2.2.2", "2.2.2.2"},
		{"no_port", "10.0.0.9", "", "10.0.0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}

func TestReserve(t *testing.T) {
	rl := NewIPRateLimiter(2, time.Minute, CleanupOpts{})
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ok, _ := rl.Reserve("a")
	assert.True(t, ok)
	ok, _ = rl.Reserve("a")
	assert.True(t, ok)

	ok, wait := rl.Reserve("a")
	assert.False(t, ok)
	assert.InDelta(t, 30*time.Second, wait, float64(time.Second))

	ok, _ = rl.Reserve("b")
	assert.True(t, ok, "buckets are per address")

	now = now.Add(31 * time.Second)
	ok, _ = rl.Reserve("a")
	assert.True(t, ok)
}

func TestSweep(t *testing.T) {
	rl := NewIPRateLimiter(1, time.Second, CleanupOpts{TTL: time.Minute})
	defer rl.Stop()

	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Reserve("old")

	now = now.Add(2 * time.Minute)
	rl.Reserve("fresh")
	rl.sweep()

	assert.NotContains(t, rl.visitors, "old")
	assert.Contains(t, rl.visitors, "fresh")
}

func TestMiddleware(t *testing.T) {
	rl := NewIPRateLimiter(1, time.Hour, CleanupOpts{})
	defer rl.Stop()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := rl.Middleware(next)

	do := func(htmx bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/account/login", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		if htmx {
			req.Header.Set("HX-Request", "true")
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do(false).Code)

	rec := do(false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = do(true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many requests")
}
