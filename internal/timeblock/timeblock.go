// Package timeblock maps timestamps onto the fixed 30-minute windows
// Broadcastify uses to bucket archived calls.
package timeblock

import "time"

// Width is the archive block size used by the calls platform.
const Width = 30 * time.Minute

const widthSeconds = int64(Width / time.Second)

// FloorUnix returns the start of the block containing the unix timestamp ts.
// Flooring an already-floored timestamp returns it unchanged.
func FloorUnix(ts int64) int64 {
	rem := ts % widthSeconds
	if rem < 0 {
		rem += widthSeconds
	}
	return ts - rem
}

// Floor returns the start of the block containing t, preserving its location.
func Floor(t time.Time) time.Time {
	return time.Unix(FloorUnix(t.Unix()), 0).In(t.Location())
}

// Bounds returns the [start, end) boundaries of the block containing ts.
func Bounds(ts int64) (start, end int64) {
	start = FloorUnix(ts)
	return start, start + widthSeconds
}
