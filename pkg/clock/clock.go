// Package clock lets the ticket engine schedule timers against an
// injectable time source. Production wires Real(); tests drive a
// FakeClock forward with Advance so reminder, inactivity and buffer
// windows fire deterministically.
package clock

import "time"

type Clock interface {
	Now() time.Time

	// After delivers the time on the returned channel once d elapsed.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f once d elapsed. The real clock calls f on its
	// own goroutine, the fake clock calls it from Advance.
	AfterFunc(d time.Duration, f func()) *Timer

	NewTicker(d time.Duration) *Ticker
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stop  func() bool
	reset func(time.Duration) bool
}

// Stop cancels the pending call. Returns false if it already fired or
// was stopped before.
func (t *Timer) Stop() bool { return t.stop() }

// Reset reschedules the call to d from now. Returns true if the timer
// was still pending.
func (t *Timer) Reset(d time.Duration) bool { return t.reset(d) }

type Ticker struct {
	C <-chan time.Time

	stop func()
}

func (t *Ticker) Stop() { t.stop() }
