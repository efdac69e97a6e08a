package playback

import "time"

// Clock reports the output audio clock in seconds. The zero point is
// arbitrary; only monotonic progression matters.
type Clock interface {
	Now() float64
}

// monotonicClock is the production clock, backed by the runtime's
// monotonic timer.
type monotonicClock struct {
	start time.Time
}

// NewClock returns a monotonic clock starting at zero.
func NewClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() float64 {
	return time.Since(c.start).Seconds()
}
