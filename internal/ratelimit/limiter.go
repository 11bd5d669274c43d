// Package ratelimit implements a fixed-window per-client request limiter.
package ratelimit

import (
	"sync"
	"time"

	"github.com/pageaudit/pageaudit/internal/audit"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Config holds limiter configuration.
type Config struct {
	// Requests allowed per window.
	Requests int
	// Window length; counters reset at discrete window boundaries rather
	// than decaying gradually. A burst just before a boundary plus one just
	// after can total ~2x Requests in a short real-time span; that is the
	// accepted fixed-window trade-off.
	Window time.Duration
}

type counter struct {
	count       int
	windowStart time.Time
}

// Limiter tracks a rolling request count per client identifier. Clients are
// identified by a caller-supplied address string; nothing validates its
// authenticity. The client map grows with distinct clients seen and is never
// pruned.
type Limiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	cfg      Config
	clock    audit.Clock
}

// New constructs a Limiter. Counters are created lazily on first check.
func New(cfg Config, clock audit.Clock) *Limiter {
	if cfg.Requests <= 0 {
		cfg.Requests = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{
		counters: make(map[string]*counter),
		cfg:      cfg,
		clock:    clock,
	}
}

// Check admits or rejects one request from clientID. Concurrent checks for
// the same client serialize on the mutex so the read-increment-write is
// atomic and nothing undercounts.
func (l *Limiter) Check(clientID string) Decision {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[clientID]
	if !ok || now.Sub(c.windowStart) >= l.cfg.Window {
		l.counters[clientID] = &counter{count: 1, windowStart: now}
		return Decision{Allowed: true}
	}
	if c.count >= l.cfg.Requests {
		retry := l.cfg.Window - now.Sub(c.windowStart)
		if retry <= 0 {
			retry = time.Second
		}
		return Decision{Allowed: false, RetryAfter: retry}
	}
	c.count++
	return Decision{Allowed: true}
}

// Clients reports the number of distinct client identifiers tracked.
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}
