package auth

import (
	"sync"
	stdtime "time"
)

// FakeClock is a Clock under test control. It satisfies the Clock interfaces
// of both the auth and notes services and is safe to share between a test
// client and an httptest server.
type FakeClock struct {
	mu   sync.Mutex
	now  stdtime.Time
	step stdtime.Duration
}

// NewFakeClock returns a clock frozen at t.
func NewFakeClock(t stdtime.Time) *FakeClock {
	return &FakeClock{now: t}
}

// NewSteppingClock returns a clock that starts at t and moves forward by step
// after every reading, so consecutive writes get strictly increasing times.
func NewSteppingClock(t stdtime.Time, step stdtime.Duration) *FakeClock {
	return &FakeClock{now: t, step: step}
}

// Now returns the current fake time.
func (c *FakeClock) Now() stdtime.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

// Peek returns the time the next Now call will report, without stepping.
func (c *FakeClock) Peek() stdtime.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d stdtime.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t. Tokens use it to land exactly on an expiry boundary.
func (c *FakeClock) Set(t stdtime.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
