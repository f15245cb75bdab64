package ticket

import (
	"time"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/clock"
)

// schedule calls fire on the manager loop every interval. It ends when
// Stop is called, when done reports true before a run, or when fire
// returns false. Postpone restarts the current interval.
type schedule struct {
	clock    clock.Clock
	interval time.Duration
	post     func(func())

	done func() bool
	fire func() bool

	timer   *clock.Timer
	running bool

	// Bumped whenever the timer is re-armed or stopped, so a run that
	// was already posted to the loop can tell it is stale.
	generation int
}

func newSchedule(c clock.Clock, interval time.Duration, post func(func()), done func() bool, fire func() bool) *schedule {
	return &schedule{
		clock:    c,
		interval: interval,
		post:     post,
		done:     done,
		fire:     fire,
	}
}

func (s *schedule) Start() {
	if s.running {
		return
	}
	s.running = true
	s.arm()
}

func (s *schedule) Stop() {
	if !s.running {
		return
	}
	s.running = false
	s.generation++
	s.timer.Stop()
}

func (s *schedule) Postpone() {
	if !s.running {
		return
	}
	s.timer.Stop()
	s.arm()
}

func (s *schedule) Running() bool {
	return s.running
}

func (s *schedule) arm() {
	s.generation++
	generation := s.generation
	s.timer = s.clock.AfterFunc(s.interval, func() {
		s.post(func() { s.run(generation) })
	})
}

func (s *schedule) run(generation int) {
	if !s.running || generation != s.generation {
		return
	}
	if s.done() || !s.fire() {
		s.Stop()
		return
	}
	if s.running {
		s.arm()
	}
}
