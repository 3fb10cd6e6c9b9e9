package todo

import (
	"fmt"
	"time"
)

// FormatDuration renders d as "{h}h {m}m", "{m}m" or "{s}s", truncating to
// whole seconds. Negative durations render as "0s".
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
