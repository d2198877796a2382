package mcpserver

import "time"

// millisToDuration converts a millisecond config value to a time.Duration,
// substituting defaultMS when ms is not positive.
func millisToDuration(ms, defaultMS int) time.Duration {
	if ms <= 0 {
		ms = defaultMS
	}
	return time.Duration(ms) * time.Millisecond
}
