// Package ratelimiter throttles account and upload requests per client IP.
package ratelimiter

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	viewAuth "github.com/johndosdos/friendlychat/components/auth"
)

type CleanupOpts struct {
	TTL      time.Duration
	Interval time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client address. Buckets idle
// longer than TTL are dropped by a background sweep.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	now      func() time.Time
	stop     context.CancelFunc
	CleanupOpts
}

// NewIPRateLimiter allows requests per window with a burst of requests.
func NewIPRateLimiter(requests int, window time.Duration, cleanupOpts CleanupOpts) *IPRateLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	rl := &IPRateLimiter{
		visitors:    make(map[string]*visitor),
		rate:        rate.Every(window / time.Duration(requests)),
		burst:       requests,
		now:         time.Now,
		stop:        cancel,
		CleanupOpts: cleanupOpts,
	}

	if cleanupOpts.Interval > 0 {
		go rl.cleanup(ctx)
	}

	return rl
}

// Stop ends the cleanup goroutine.
func (rl *IPRateLimiter) Stop() {
	rl.stop()
}

func (rl *IPRateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *IPRateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.TTL {
			delete(rl.visitors, ip)
		}
	}
}

// ClientIP prefers the last X-Forwarded-For hop, which the proxy in
// front of us appends.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[len(ips)-1])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		slog.Warn("invalid argument for net.SplitHostPort()",
			slog.String("remote_addr", r.RemoteAddr))
		return r.RemoteAddr
	}

	return host
}

// Reserve takes a token for ip. When none is available it returns false
// and how long until one is.
func (rl *IPRateLimiter) Reserve(ip string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now

	if v.limiter.AllowN(now, 1) {
		return true, 0
	}

	r := v.limiter.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return false, wait
}

func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)

		ok, wait := rl.Reserve(ip)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		slog.WarnContext(r.Context(), "rate limit exceeded",
			"ip", ip,
			"path", r.URL.Path,
			"method", r.Method)

		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))

		if r.Header.Get("HX-Request") == "true" {
			err := viewAuth.ErrorMsgAuth("Too many requests. Try again later.").Render(r.Context(), w)
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to render error component",
					"error", err,
					"ip", ip)
			}
			return
		}

		http.Error(w, "Too many requests. Try again later.", http.StatusTooManyRequests)
	})
}
