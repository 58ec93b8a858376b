package handler

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// WriteLimiter throttles mutating requests per client address using a
// token bucket. Reads are never limited. It is safe for concurrent use.
type WriteLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     float64 // tokens added per second
	capacity float64
	now      func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewWriteLimiter allows perMinute writes per client with bursts up to
// burst. Idle buckets are dropped until ctx is done.
func NewWriteLimiter(ctx context.Context, perMinute, burst int) *WriteLimiter {
	l := newWriteLimiter(perMinute, burst, time.Now)
	go l.sweep(ctx, 5*time.Minute)
	return l
}

func newWriteLimiter(perMinute, burst int, now func() time.Time) *WriteLimiter {
	if burst < 1 {
		burst = 1
	}
	return &WriteLimiter{
		buckets:  make(map[string]*bucket),
		rate:     float64(perMinute) / 60,
		capacity: float64(burst),
		now:      now,
	}
}

// allow consumes a token for key. When the bucket is empty it returns
// false and how long until the next token is available.
func (l *WriteLimiter) allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.buckets[key] = b
	}

	b.tokens = min(b.tokens+now.Sub(b.last).Seconds()*l.rate, l.capacity)
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if l.rate <= 0 {
		return false, time.Minute
	}
	return false, time.Duration((1 - b.tokens) / l.rate * float64(time.Second))
}

// Limit wraps next so POST, PUT and DELETE requests are rate limited.
func (l *WriteLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
		default:
			next.ServeHTTP(w, r)
			return
		}

		ok, wait := l.allow(clientAddr(r))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sweep removes buckets that have not been touched for 10 minutes.
func (l *WriteLimiter) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.prune(l.now().Add(-10 * time.Minute))
		}
	}
}

func (l *WriteLimiter) prune(cutoff time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.last.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
