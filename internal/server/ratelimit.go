package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterTTL = 30 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// identifierLimiter bounds passcode issuance per identifier so the demo
// delivery path cannot be used to spam a phone number once a real channel
// is wired in. Stale entries are evicted on access.
type identifierLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	limit   rate.Limit
	burst   int
}

func newIdentifierLimiter(perMinute int) *identifierLimiter {
	if perMinute <= 0 {
		perMinute = 3
	}

	return &identifierLimiter{
		entries: map[string]*limiterEntry{},
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
	}
}

func (l *identifierLimiter) allow(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for id, e := range l.entries {
		if now.Sub(e.lastSeen) > limiterTTL {
			delete(l.entries, id)
		}
	}

	e, ok := l.entries[identifier]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[identifier] = e
	}
	e.lastSeen = now

	return e.limiter.Allow()
}
