// Package state provides the thread-safe snapshot store shared by the
// background live poller and the UI. The poller appends freshly
// deduplicated calls; the UI renders immutable snapshots.
package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/radiolurker/crier/internal/bcfy"
)

// keep a bounded tail of the feed; the UI never needs more
const maxCalls = 500

// Snapshot represents the latest live feed data available to the UI.
type Snapshot struct {
	Calls               []bcfy.Call // chronological, newest last
	Initialized         bool        // live session snapshot received
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when polling has failed repeatedly.
func (s Snapshot) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Store coordinates concurrent updates to the snapshot.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// Append records the outcome of one poll. Fresh calls are appended in
// order; on error the accumulated feed is kept and the failure is
// recorded for visibility.
func (s *Store) Append(fresh []bcfy.Call, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.LastUpdated = time.Now()
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
		return
	}

	s.snapshot.Initialized = true
	s.snapshot.Calls = append(s.snapshot.Calls, fresh...)
	if n := len(s.snapshot.Calls); n > maxCalls {
		trimmed := make([]bcfy.Call, maxCalls)
		copy(trimmed, s.snapshot.Calls[n-maxCalls:])
		s.snapshot.Calls = trimmed
	}
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Calls = cloneCalls(s.snapshot.Calls)
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneCalls(calls []bcfy.Call) []bcfy.Call {
	if len(calls) == 0 {
		return nil
	}
	dup := make([]bcfy.Call, len(calls))
	copy(dup, calls)
	return dup
}
