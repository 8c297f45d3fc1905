package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RealIP extracts the client's real IP address, preferring Cloudflare's
// CF-Connecting-IP header, then X-Forwarded-For, and falling back to RemoteAddr.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LimitStore counts hits per key inside fixed windows. Implementations may be
// shared between processes; MemoryStore is for a single instance.
type LimitStore interface {
	// Incr records a hit for key and returns the count in the current window.
	Incr(ctx context.Context, key string, window time.Duration) (int, error)
	// Sweep drops windows that ended before now.
	Sweep(now time.Time)
}

type entry struct {
	count    int
	windowAt time.Time
}

// MemoryStore is an in-process LimitStore.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[key]
	if !ok || !now.Before(e.windowAt) {
		s.entries[key] = &entry{count: 1, windowAt: now.Add(window)}
		return 1, nil
	}
	e.count++
	return e.count, nil
}

func (s *MemoryStore) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if !now.Before(e.windowAt) {
			delete(s.entries, key)
		}
	}
}

// Len reports the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RateLimit returns middleware that allows limit requests per window for each
// key. A failing store lets the request through.
func RateLimit(store LimitStore, scope string, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n, err := store.Incr(r.Context(), scope+":"+RealIP(r), window)
			if err != nil {
				logger.Warn("rate limit store", "scope", scope, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if n > limit {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				writeFail(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
