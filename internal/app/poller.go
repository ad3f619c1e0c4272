package app

import (
	"context"
	"log"
	"time"

	"github.com/radiolurker/crier/internal/bcfy"
	"github.com/radiolurker/crier/internal/calls"
	"github.com/radiolurker/crier/internal/state"
)

const (
	defaultPollInterval = 5 * time.Second
	maxBackoff          = 30 * time.Second
)

// StartPoller launches a background goroutine that initializes the live
// session and then polls it at a fixed cadence, feeding the store. It
// returns immediately; polling stops when ctx is cancelled.
func StartPoller(ctx context.Context, store *state.Store, poller *calls.LivePoller, interval time.Duration) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go runPoller(ctx, store, poller, interval)
}

func runPoller(ctx context.Context, store *state.Store, poller *calls.LivePoller, interval time.Duration) {
	initialized := false
	for {
		var fresh []bcfy.Call
		var err error
		if !initialized {
			fresh, err = poller.Init(ctx)
			initialized = err == nil
		} else {
			fresh, err = poller.Poll(ctx)
		}
		store.Append(fresh, err)
		if err != nil {
			log.Printf("live poll failed: %v", err)
		}

		delay := calculateBackoff(store.Snapshot().ConsecutiveFailures, interval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// calculateBackoff doubles the poll interval per consecutive failure,
// capped so an outage never silences polling for long.
func calculateBackoff(failures int, baseInterval time.Duration) time.Duration {
	if failures <= 0 {
		return baseInterval
	}
	backoff := baseInterval
	for i := 0; i < failures; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
