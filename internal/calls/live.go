package calls

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/radiolurker/crier/internal/bcfy"
)

// LivePoller tracks one (system, talkgroup) live feed and deduplicates
// overlapping poll results client-side; the remote API has no cursor.
// Calls are ordered by (StartTime, ID) and a watermark records the
// newest call already delivered. The watermark only moves forward, so a
// flaky out-of-order response can neither regress the dedup state nor
// replay calls.
//
// A poller serves one caller at a time; share a Session, not a poller.
type LivePoller struct {
	api       bcfy.CallAPI
	auth      Authenticator
	system    int
	talkgroup int
	sessionID string

	initialized bool
	mark        bcfy.Call
	marked      bool
	position    int64
}

// NewLivePoller creates an uninitialized poller for the talkgroup's
// live feed. Init must be called before Poll.
func NewLivePoller(api bcfy.CallAPI, auth Authenticator, system, talkgroup int) *LivePoller {
	return &LivePoller{
		api:       api,
		auth:      auth,
		system:    system,
		talkgroup: talkgroup,
		sessionID: uuid.NewString(),
		position:  time.Now().Unix(),
	}
}

// Init performs the first fetch, returning the feed's current snapshot
// and seeding the watermark from the newest call in it. Calling Init on
// an initialized poller is a StateError.
func (p *LivePoller) Init(ctx context.Context) ([]bcfy.Call, error) {
	if p.initialized {
		return nil, &bcfy.StateError{Reason: "live session already initialized"}
	}
	fresh, err := p.fetch(ctx, true)
	if err != nil {
		return nil, err
	}
	sortCalls(fresh)
	p.advance(fresh)
	p.initialized = true
	return fresh, nil
}

// Poll fetches the feed again and returns only the calls strictly newer
// than the watermark, in chronological order. An empty result is
// normal. On fetch failure the watermark is untouched, so the next poll
// neither loses nor duplicates calls.
func (p *LivePoller) Poll(ctx context.Context) ([]bcfy.Call, error) {
	if !p.initialized {
		return nil, &bcfy.StateError{Reason: "live session not initialized"}
	}
	batch, err := p.fetch(ctx, false)
	if err != nil {
		return nil, err
	}

	fresh := make([]bcfy.Call, 0, len(batch))
	for _, c := range batch {
		if !p.marked || c.After(p.mark) {
			fresh = append(fresh, c)
		}
	}
	sortCalls(fresh)
	p.advance(fresh)
	return fresh, nil
}

func (p *LivePoller) fetch(ctx context.Context, init bool) ([]bcfy.Call, error) {
	if err := p.auth.EnsureActive(ctx); err != nil {
		return nil, err
	}
	return p.api.FetchLive(ctx, bcfy.LiveQuery{
		System:    p.system,
		Talkgroup: p.talkgroup,
		Position:  p.position,
		Init:      init,
		SessionID: p.sessionID,
	})
}

// advance moves the watermark to the newest call observed, never
// backward.
func (p *LivePoller) advance(batch []bcfy.Call) {
	for _, c := range batch {
		if !p.marked || c.After(p.mark) {
			p.mark = c
			p.marked = true
		}
	}
	if p.marked {
		p.position = p.mark.StartTime
	}
}

func sortCalls(calls []bcfy.Call) {
	sort.Slice(calls, func(i, j int) bool {
		return calls[j].After(calls[i])
	})
}
