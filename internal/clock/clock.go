// Package clock provides a manually advanced time source for tests.
package clock

import (
	"sync"
	"time"
)

// Epoch is the default start time of a Fake clock. It falls on a day
// boundary, so every fixed window up to 24h starts exactly there.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Fake is a clock that only moves when told to.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake set to start, or Epoch when start is zero.
func NewFake(start time.Time) *Fake {
	if start.IsZero() {
		start = Epoch
	}
	return &Fake{now: start}
}

// Now returns the current fake time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *Fake) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
