package ticket

import (
	"time"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/config"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"go.uber.org/zap"
)

type Stats struct {
	// Tickets opened and closed since the desk started.
	Opened int
	Closed int

	// Avg time from a ticket's creation until a helper accepted it.
	// Calculated by a fixed size sliding window.
	AvgAcceptDuration time.Duration

	// A fixed size sliding window for calculating average accept time.
	acceptDurationQueue *linkedlistqueue.Queue

	config *config.Config

	logger *zap.SugaredLogger
}

// DeskStats is what Manager.Stats reports.
type DeskStats struct {
	Opened   int `json:"opened"`
	Closed   int `json:"closed"`
	New      int `json:"new"`
	Taken    int `json:"taken"`
	Excluded int `json:"excluded"`

	AvgAcceptDuration time.Duration `json:"-"`
	AvgAcceptSeconds  float64       `json:"avgAcceptSeconds"`
}

func newStats(config *config.Config, logger *zap.SugaredLogger) *Stats {
	return &Stats{
		AvgAcceptDuration:   config.InitAvgWait(),
		acceptDurationQueue: linkedlistqueue.New(),
		config:              config,
		logger:              logger,
	}
}

func (s *Stats) updateAvgAccept(acceptDuration time.Duration) {
	if s.acceptDurationQueue.Size() >= *s.config.AverageWaitWindowSize {
		s.acceptDurationQueue.Dequeue()
	}
	s.acceptDurationQueue.Enqueue(acceptDuration)

	it := s.acceptDurationQueue.Iterator()
	var totalAcceptDuration time.Duration
	for it.Next() {
		totalAcceptDuration += it.Value().(time.Duration)
	}

	s.AvgAcceptDuration = totalAcceptDuration / time.Duration(s.acceptDurationQueue.Size())
	s.logger.Debugf("updated avgAcceptDuration[%v]", s.AvgAcceptDuration)
}

func (s *Stats) snapshot(tickets *linkedhashmap.Map) DeskStats {
	stats := DeskStats{
		Opened:            s.Opened,
		Closed:            s.Closed,
		AvgAcceptDuration: s.AvgAcceptDuration,
		AvgAcceptSeconds:  s.AvgAcceptDuration.Seconds(),
	}

	it := tickets.Iterator()
	for it.Begin(); it.Next(); {
		t := it.Value().(*Ticket)
		switch t.status {
		case StatusNew:
			stats.New++
		case StatusTaken:
			stats.Taken++
		}
		if t.excluded {
			stats.Excluded++
		}
	}
	return stats
}
