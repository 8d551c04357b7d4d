// Package ldtime provides the two time representations the core depends on:
// wall-clock milliseconds for anything that crosses the wire or gets compared
// against a server-supplied timestamp, and monotonic elapsed time for
// measuring durations (backoff, connection age) where wall-clock jumps must
// not matter.
package ldtime

import "time"

// UnixMillis is a point in wall-clock time expressed as milliseconds since
// the Unix epoch. Zero means "empty/unset", matching the spec's treatment of
// debug_events_until_date == 0 as "never".
type UnixMillis int64

// Now returns the current wall-clock time in Unix milliseconds.
func Now() UnixMillis {
	return UnixMillis(time.Now().UnixNano() / int64(time.Millisecond))
}

// IsZero reports whether m is the empty/unset value.
func (m UnixMillis) IsZero() bool {
	return m == 0
}

// Before reports whether m is strictly earlier than other.
func (m UnixMillis) Before(other UnixMillis) bool {
	return m < other
}

// Time converts m to a time.Time in the local timezone.
func (m UnixMillis) Time() time.Time {
	return time.UnixMilli(int64(m))
}

// Timer measures monotonic elapsed time. It wraps time.Time rather than
// reimplementing a monotonic clock, since Go's time.Now() already carries a
// monotonic reading that survives wall-clock adjustments.
type Timer struct {
	start time.Time
}

// NewTimer starts a new elapsed-time measurement.
func NewTimer() Timer {
	return Timer{start: time.Now()}
}

// Elapsed returns the duration since the timer was created.
func (t Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// ElapsedMillis returns Elapsed truncated to whole milliseconds.
func (t Timer) ElapsedMillis() int64 {
	return t.Elapsed().Milliseconds()
}
