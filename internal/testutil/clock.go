package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant returned by a fresh SteppingClock.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// SteppingClock is a deterministic wall clock for tests.
//
// Each call to Now returns the previous instant plus Step, starting at
// Epoch. A zero Step makes it a fixed clock. It satisfies policy.Clock so
// timestamp markers written in tests are reproducible.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SteppingClock struct {
	mu    sync.Mutex
	step  time.Duration
	ticks int64
}

// NewSteppingClock creates a clock advancing by step on every reading.
func NewSteppingClock(step time.Duration) *SteppingClock {
	return &SteppingClock{step: step}
}

// NewFixedClock creates a clock that always returns Epoch.
func NewFixedClock() *SteppingClock {
	return &SteppingClock{}
}

// Now returns the next instant.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := Epoch.Add(time.Duration(c.ticks) * c.step)
	c.ticks++
	return t
}

// Readings returns how many times Now has been called.
func (c *SteppingClock) Readings() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock to Epoch.
func (c *SteppingClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks = 0
}
