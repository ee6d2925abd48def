package vactor

import "time"

// Clock is the pluggable time source used for activation timestamps and
// idle-eviction cutoffs. Tests substitute a manually advanced fake clock
// (see vactest.FakeClock) to drive idle eviction deterministically.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// systemClock is the default Clock, backed by the wall clock.
type systemClock struct{}

// Now implements Clock.
func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock is the default, real-time Clock.
var SystemClock Clock = systemClock{}
