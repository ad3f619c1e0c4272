package ui

import (
	"fmt"
	"time"
)

// formatClock renders a unix timestamp as a local wall-clock time.
func formatClock(ts int64) string {
	if ts <= 0 {
		return "--:--:--"
	}
	return time.Unix(ts, 0).Format("15:04:05")
}

// formatDuration renders a call length in seconds compactly.
func formatDuration(seconds int) string {
	if seconds <= 0 {
		return "0s"
	}
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm%02ds", seconds/60, seconds%60)
}

// truncate shortens s to at most width runes, with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}
