// Package ratelimit implements a per-client sliding-window rate limiter.
//
// The limiter keeps, for every client identity, the timestamps of its recently
// admitted requests. A request is admitted when fewer than the configured limit
// fall inside the trailing window. State lives in process memory only — this is
// advisory abuse mitigation, not a security boundary.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window rate limiter keyed by client identity.
// Construct it with New and share one instance across requests; all methods
// are safe for concurrent use.
type Limiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	now       func() time.Time
	clients   map[string][]time.Time
	lastSweep time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the limiter's time source. Tests use this to control the
// window without sleeping.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter admitting at most limit requests per client within the
// trailing window.
func New(limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastSweep = l.now()
	return l
}

// Admit reports whether a request from clientID may proceed. An admitted
// request is recorded immediately and the record is kept even if the caller
// later disconnects; a rejected request leaves no trace beyond the prune.
func (l *Limiter) Admit(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := prune(l.clients[clientID], cutoff)
	if len(recent) >= l.limit {
		l.clients[clientID] = recent
		return false
	}

	l.clients[clientID] = append(recent, now)
	l.maybeSweep(now, cutoff)
	return true
}

// prune drops timestamps at or before cutoff, reusing the slice's backing array.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// maybeSweep evicts clients whose every timestamp has expired. Running it at
// most once per window keeps Admit amortized O(1) in the number of clients
// while still bounding growth from one-shot identities.
func (l *Limiter) maybeSweep(now, cutoff time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for id, ts := range l.clients {
		if kept := prune(ts, cutoff); len(kept) == 0 {
			delete(l.clients, id)
		} else {
			l.clients[id] = kept
		}
	}
}
