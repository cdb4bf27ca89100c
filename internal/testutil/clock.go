package testutil

import "sync"

// Clock is a manually driven chain clock. It satisfies vm.Clock.
type Clock struct {
	mu  sync.Mutex
	now int64
}

// NewClock returns a Clock reading start (unix seconds).
func NewClock(start int64) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by secs.
func (c *Clock) Advance(secs int64) {
	c.mu.Lock()
	c.now += secs
	c.mu.Unlock()
}

// Set jumps the clock to t, which may be in the past to simulate a
// wall-clock rollback.
func (c *Clock) Set(t int64) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
