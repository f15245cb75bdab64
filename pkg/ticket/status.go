package ticket

import "fmt"

type Status int

const (
	StatusNew Status = iota
	StatusTaken
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusTaken:
		return "taken"
	case StatusClosed:
		return "closed"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	for _, status := range []Status{StatusNew, StatusTaken, StatusClosed} {
		if status.String() == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown ticket status %q", text)
}

// Reasons shown when a ticket closes.
const (
	ReasonNoUsers    = "no users remaining"
	ReasonCancelled  = "closed by requester"
	ReasonInactivity = "inactivity"
	ReasonAbandoned  = "mentor"
	ReasonRemoved    = "removed by staff"
)
