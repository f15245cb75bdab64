package platform

// AffordanceKind tells how the user triggered an affordance.
type AffordanceKind int

const (
	ReactionAffordance AffordanceKind = iota
	ButtonAffordance
)

func (k AffordanceKind) String() string {
	if k == ButtonAffordance {
		return "button"
	}
	return "reaction"
}

// Event is one normalized platform event.
type Event interface {
	isEvent()
}

// AffordanceTriggered is a reaction added or a button pressed on a
// message. The gateway normalizes both into this single shape so the
// engine never has to inspect raw payloads.
type AffordanceTriggered struct {
	Kind      AffordanceKind
	GuildId   string
	ChannelId string
	MessageId string
	UserId    string
	IsBot     bool

	// Key is the emoji for reactions and the custom id for buttons.
	Key string
}

type MessageCreated struct {
	GuildId   string
	ChannelId string
	MessageId string
	AuthorId  string
	IsBot     bool
	Content   string

	// Users mentioned in the message, in order of appearance.
	Mentions []string
}

// VoiceStateChanged reports a user joining, moving between or leaving
// voice channels. ChannelId is empty when the user disconnected.
type VoiceStateChanged struct {
	GuildId   string
	ChannelId string
	UserId    string
}

func (AffordanceTriggered) isEvent() {}
func (MessageCreated) isEvent()      {}
func (VoiceStateChanged) isEvent()   {}
