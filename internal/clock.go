package fsrpad

import "time"

// Clock is a monotonic microsecond counter. It is expected to wrap around;
// all durations are computed with unsigned subtraction.
type Clock interface {
	Usec() uint32
}

// usecSince returns the time elapsed since then, correct across a counter
// overflow as long as the span stays below half the counter range.
func usecSince(now, then uint32) uint32 {
	return now - then
}

// MonotonicClock counts microseconds since its creation using the runtime's
// monotonic clock.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock returns a clock starting at zero.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

// Usec implements Clock.
func (c *MonotonicClock) Usec() uint32 {
	return uint32(time.Since(c.start).Microseconds())
}
