package core

import (
	"sync"
	"time"
)

// Limiter is a per-identity leaky-window message counter: once limit
// timestamps fall inside the trailing window, further attempts are
// rejected without being recorded. Exempt identities are never limited.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	stamps map[Identity][]time.Time
	exempt func(Identity) bool
	now    func() time.Time
}

// NewLimiter builds a limiter rejecting more than limit events per window.
// exempt may be nil, in which case no identity is exempt.
func NewLimiter(limit int, window time.Duration, exempt func(Identity) bool) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		stamps: make(map[Identity][]time.Time),
		exempt: exempt,
		now:    time.Now,
	}
}

// IsLimited prunes id's window to the trailing interval and reports whether
// the attempt exceeds the limit. Attempts under the limit are recorded;
// rejected attempts are not.
func (l *Limiter) IsLimited(id Identity) bool {
	if l.exempt != nil && l.exempt(id) {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	kept := l.stamps[id][:0]
	for _, t := range l.stamps[id] {
		if now.Sub(t) < l.window {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.stamps[id] = kept
		return true
	}

	l.stamps[id] = append(kept, now)
	return false
}

// Reset clears id's window. Called on successful login so a fresh user is
// not penalized for guest-era activity.
func (l *Limiter) Reset(id Identity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.stamps, id)
}
