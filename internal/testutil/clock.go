package testutil

import (
	"sync"
	"time"
)

// Clock is a deterministic time source for tests.
//
// Each call to Now advances the clock by a fixed step, so provenance
// timestamps are reproducible and golden files stay byte-identical
// across runs. Unlike time.Now, a Clock can be reset for test reuse.
//
// Thread-safety: all methods are safe for concurrent use.
type Clock struct {
	mu    sync.Mutex
	base  time.Time
	step  time.Duration
	calls int64
}

// NewClock creates a Clock starting at base, advancing by step per call.
func NewClock(base time.Time, step time.Duration) *Clock {
	return &Clock{base: base, step: step}
}

// NewDefaultClock creates a Clock at a fixed UTC epoch with one-second
// steps. Suitable for most golden tests.
func NewDefaultClock() *Clock {
	return NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
}

// Now returns the current tick and advances the clock. The first call
// returns the base time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.base.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Calls returns how many ticks have been handed out.
func (c *Clock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset rewinds the clock to its base time.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
