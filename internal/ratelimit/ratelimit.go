// Package ratelimit implements a tiered sliding-window throttle for
// user-facing replies. Windows are evaluated lazily at call time; there is
// no background sweep.
package ratelimit

import (
	"sync"
	"time"
)

// Decision is the outcome of a rate-limit check.
type Decision int

const (
	// Allow means the caller should send its full response.
	Allow Decision = iota
	// SoftWarn means the caller should send a lighter acknowledgement
	// instead of the full response.
	SoftWarn
	// Suppress means the caller should send nothing.
	Suppress
)

// Result describes one rate-limit check.
type Result struct {
	Decision Decision
	// Tier is the ordinal of this call within the active window, starting
	// at 1. It lets callers with more than one warn text pick between them.
	Tier int
	// Remaining is how long until the active window elapses.
	Remaining time.Duration
}

type entry struct {
	tier        int
	windowStart time.Time
}

// Limiter tracks per-key tiers within sliding windows. Policy (window
// length, suppress tier) is supplied by the caller; distinct call sites
// should use distinct key namespaces or distinct Limiter instances.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry

	suppressAfter int
	now           func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithSuppressAfter sets the tier at which checks start returning Suppress.
// Tiers 2..n-1 return SoftWarn. n = 0 disables suppression entirely: every
// repeat call within the window returns SoftWarn.
func WithSuppressAfter(n int) Option {
	return func(l *Limiter) { l.suppressAfter = n }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter. The default policy suppresses from tier 3 on.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		entries:       make(map[string]*entry),
		suppressAfter: 3,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one event for key and returns the resulting decision.
// The first event for a key, or the first event after the previous window
// has fully elapsed, starts a new window at tier 1 and is allowed.
func (l *Limiter) Check(key string, window time.Duration) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	e, ok := l.entries[key]
	if !ok || now.Sub(e.windowStart) >= window {
		l.entries[key] = &entry{tier: 1, windowStart: now}
		return Result{Decision: Allow, Tier: 1, Remaining: window}
	}

	e.tier++
	return Result{
		Decision:  l.decide(e.tier),
		Tier:      e.tier,
		Remaining: window - now.Sub(e.windowStart),
	}
}

func (l *Limiter) decide(tier int) Decision {
	switch {
	case tier == 1:
		return Allow
	case l.suppressAfter == 0 || tier < l.suppressAfter:
		return SoftWarn
	default:
		return Suppress
	}
}

// Prune drops entries whose window started more than maxAge ago. Callers
// may invoke it opportunistically; correctness never depends on it because
// stale entries are reset lazily by Check.
func (l *Limiter) Prune(maxAge time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	for key, e := range l.entries {
		if e.windowStart.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}
