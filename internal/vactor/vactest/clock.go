// Package vactest provides test doubles for internal/vactor: a manually
// advanced Clock, a loopback Messenger, a static Locator, an in-memory
// StorageProvider, and a toy counter-actor interface exercised by the
// end-to-end scenario tests.
package vactest

import (
	"sync"
	"time"
)

// FakeClock is a manually advanced vactor.Clock, letting tests drive the
// idle-eviction cutoff deterministically instead of racing the wall clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a FakeClock starting at the given time.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now implements vactor.Clock.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}
