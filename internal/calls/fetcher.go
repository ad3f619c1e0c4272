// Package calls layers query semantics over the raw API client: the
// cache-aware archived-block fetcher and the live poller's dedup state
// machine.
package calls

import (
	"context"
	"time"

	"github.com/radiolurker/crier/internal/bcfy"
	"github.com/radiolurker/crier/internal/cache"
	"github.com/radiolurker/crier/internal/timeblock"
)

// Blocks still open when fetched can keep accumulating calls, so their
// cache entries must go stale quickly. Closed blocks are immutable and
// never expire. This mirrors the site's own archive semantics; caching
// an open block for long would hide newly arrived calls.
const openBlockTTL = 5 * time.Minute

// Block is one archived block's calls plus its resolved boundaries.
type Block struct {
	Calls []bcfy.Call
	Start int64
	End   int64
}

// Authenticator guards remote access, re-establishing the session when
// the token is missing or was rejected. Implemented by *bcfy.Session.
type Authenticator interface {
	EnsureActive(ctx context.Context) error
}

var _ Authenticator = (*bcfy.Session)(nil)

// ArchiveFetcher resolves archived-block queries through the cache.
type ArchiveFetcher struct {
	api   bcfy.CallAPI
	auth  Authenticator
	store *cache.Store
	now   func() time.Time
}

// NewArchiveFetcher wires the fetcher to its session guard, transport,
// and cache. The store may be nil, which disables caching entirely.
func NewArchiveFetcher(api bcfy.CallAPI, auth Authenticator, store *cache.Store) *ArchiveFetcher {
	return &ArchiveFetcher{api: api, auth: auth, store: store, now: time.Now}
}

// Fetch returns the calls recorded for the block containing ts. Cached
// blocks are served without touching the network; misses authenticate,
// query the archive API, and cache the result under the open/closed
// block TTL policy. Results are complete or absent, never partial.
func (f *ArchiveFetcher) Fetch(ctx context.Context, system, talkgroup int, ts int64) (Block, error) {
	start, end := timeblock.Bounds(ts)
	fp := cache.Fingerprint{System: system, Talkgroup: talkgroup, BlockStart: start}

	if f.store != nil {
		if calls, cachedStart, cachedEnd, ok := f.store.Get(fp); ok {
			if cachedStart == 0 {
				cachedStart = start
			}
			if cachedEnd == 0 {
				cachedEnd = end
			}
			return Block{Calls: calls, Start: cachedStart, End: cachedEnd}, nil
		}
	}

	if err := f.auth.EnsureActive(ctx); err != nil {
		return Block{}, err
	}
	res, err := f.api.FetchArchive(ctx, system, talkgroup, start)
	if err != nil {
		return Block{}, err
	}

	// Prefer the server-confirmed boundaries when it reports them.
	if res.Start != 0 {
		start = res.Start
	}
	if res.End != 0 {
		end = res.End
	}

	if f.store != nil {
		ttl := time.Duration(0)
		if end > f.now().Unix() {
			ttl = openBlockTTL
		}
		if err := f.store.Put(fp, res.Calls, start, end, ttl); err != nil {
			return Block{}, err
		}
	}
	return Block{Calls: res.Calls, Start: start, End: end}, nil
}

// Refresh drops any cached entry for the block containing ts and
// fetches it again, for callers that know the cached payload is stale.
func (f *ArchiveFetcher) Refresh(ctx context.Context, system, talkgroup int, ts int64) (Block, error) {
	if f.store != nil {
		start, _ := timeblock.Bounds(ts)
		if err := f.store.Invalidate(cache.Fingerprint{System: system, Talkgroup: talkgroup, BlockStart: start}); err != nil {
			return Block{}, err
		}
	}
	return f.Fetch(ctx, system, talkgroup, ts)
}
