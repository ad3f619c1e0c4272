// Package ratelimit spaces out requests to the remote site so a polling
// client cannot hammer it. Each request kind has its own minimum
// interval; the live feed tolerates less traffic than the archive API.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Kind selects which interval applies to a request.
type Kind string

const (
	KindDefault Kind = "default"
	KindArchive Kind = "archive"
	KindLive    Kind = "live"

	// Directory scrapes run at the default spacing.
	KindScrape Kind = "scrape"
)

var defaultIntervals = map[Kind]time.Duration{
	KindDefault: time.Second,
	KindArchive: 2 * time.Second,
	KindLive:    5 * time.Second,
}

// Limiter enforces a minimum interval between requests of the same kind.
type Limiter struct {
	mu        sync.Mutex
	intervals map[Kind]time.Duration
	next      map[Kind]time.Time
	now       func() time.Time
}

// New returns a limiter with the default per-kind intervals.
func New() *Limiter {
	return &Limiter{
		intervals: defaultIntervals,
		next:      make(map[Kind]time.Time),
		now:       time.Now,
	}
}

// Wait blocks until a request of the given kind may proceed, or until
// ctx is done. The slot is reserved even when the caller is not delayed,
// so back-to-back calls queue behind one another.
func (l *Limiter) Wait(ctx context.Context, kind Kind) error {
	if l == nil {
		return nil
	}
	delay := l.reserve(kind)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Limiter) reserve(kind Kind) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	interval, ok := l.intervals[kind]
	if !ok {
		interval = l.intervals[KindDefault]
	}
	now := l.now()
	at := l.next[kind]
	if at.Before(now) {
		at = now
	}
	l.next[kind] = at.Add(interval)
	return at.Sub(now)
}
