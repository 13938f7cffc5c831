// Package millis provides the free-running millisecond tick counter the
// blink loop polls. The real counter reads the Go monotonic clock.
// The fake counter replays scripted values for tests.
package millis

import "time"

// Counter reads a monotonically non-decreasing tick count.
type Counter interface {
	// Read returns the current tick count. One tick is nominally one millisecond.
	Read() uint64
}

// RealCounter counts whole milliseconds since it was started.
type RealCounter struct {
	start time.Time
}

// NewRealCounter starts a counter at tick 0.
func NewRealCounter() *RealCounter {
	return &RealCounter{start: time.Now()}
}

// Read returns milliseconds elapsed since NewRealCounter.
// time.Since uses the monotonic clock reading, so wall clock steps do not move it.
func (c *RealCounter) Read() uint64 {
	return uint64(time.Since(c.start) / time.Millisecond)
}

// Start returns the wall time at which tick 0 occurred.
func (c *RealCounter) Start() time.Time {
	return c.start
}
