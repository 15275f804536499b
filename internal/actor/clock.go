package actor

import "time"

// Clock provides a testable time source and timer factory.
//
// Reducers must remain deterministic and never call a Clock directly.
// Runtimes use it to stamp events and to schedule timers.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending AfterFunc callback.
type Timer interface {
	// Stop prevents the callback from running. It reports false if the
	// callback already ran or was stopped before.
	Stop() bool
}

// RealClock is a production Clock implementation backed by the time package.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }

// AfterFunc implements Clock.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
