package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock only moves when Advance is called. AfterFunc callbacks run
// synchronously inside Advance, in deadline order, so they must not
// call Advance themselves.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
}

type waiter struct {
	deadline time.Time

	// Exactly one of callback and channel is set.
	callback func()
	channel  chan time.Time

	// Non-zero for tickers, which are rescheduled after firing.
	interval time.Duration

	done bool
}

func Fake(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.waiters = append(c.waiters, &waiter{deadline: c.now.Add(d), channel: channel})
	return channel
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	w := &waiter{deadline: c.now.Add(d), callback: f}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	if d <= 0 {
		c.Advance(0)
	}

	return &Timer{
		stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			if w.done {
				return false
			}
			w.done = true
			c.removeLocked(w)
			return true
		},
		reset: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasPending := !w.done
			if !wasPending {
				c.waiters = append(c.waiters, w)
			}
			w.done = false
			w.deadline = c.now.Add(d)
			return wasPending
		},
	}
}

func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	channel := make(chan time.Time, 1)
	w := &waiter{deadline: c.now.Add(d), channel: channel, interval: d}
	c.waiters = append(c.waiters, w)

	return &Ticker{
		C: channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			w.done = true
			c.removeLocked(w)
		},
	}
}

// Advance moves the clock forward by d and fires everything that became
// due, including timers scheduled by callbacks fired along the way.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()

	for {
		w, now, ok := c.popDue()
		if !ok {
			return
		}
		if w.callback != nil {
			w.callback()
			continue
		}
		select {
		case w.channel <- now:
		default:
		}
	}
}

// Pending returns the number of timers and tickers that have not fired
// or been stopped.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

func (c *FakeClock) popDue() (*waiter, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sort.SliceStable(c.waiters, func(i, j int) bool {
		return c.waiters[i].deadline.Before(c.waiters[j].deadline)
	})
	if len(c.waiters) == 0 || c.waiters[0].deadline.After(c.now) {
		return nil, c.now, false
	}

	w := c.waiters[0]
	if w.interval > 0 {
		w.deadline = w.deadline.Add(w.interval)
	} else {
		w.done = true
		c.waiters = c.waiters[1:]
	}
	return w, c.now, true
}

func (c *FakeClock) removeLocked(target *waiter) {
	for i, w := range c.waiters {
		if w == target {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}
