package util //nolint:revive // package name util hosts shared formatting helpers for CLI output

import "time"

// FormatDuration formats a duration for display. Zero and negative durations
// render as "-"; anything over a millisecond is truncated to milliseconds.
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Millisecond:
		return d.String()
	default:
		return d.Truncate(time.Millisecond).String()
	}
}
