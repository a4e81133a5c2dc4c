package stopwatch

import (
	"fmt"
	"time"
)

// Format renders d as HH:MM:SS when it is at least an hour, else MM:SS.
// Seconds are truncated; negative durations render as 00:00.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int64(d / time.Second)
	hours := seconds / 3600
	minutes := (seconds / 60) % 60
	seconds = seconds % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
