package ticket

import (
	"fmt"
	"strings"
	"time"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"
)

// Affordance keys of the messages a ticket owns. Accept and join use
// the desk's configured emojis instead.
const (
	cancelKey = "cancel"
	leaveKey  = "leave"
	keepKey   = "keep"

	ticketTypeKeyPrefix = "ticket-type:"
)

const (
	colorNew    = 0xF1C40F
	colorTaken  = 0x2ECC71
	colorClosed = 0x95A5A6
)

func mentionUsers(userIds []string) string {
	mentions := make([]string, 0, len(userIds))
	for _, userId := range userIds {
		mentions = append(mentions, platform.MentionUser(userId))
	}
	return strings.Join(mentions, " ")
}

func orNone(value string) string {
	if value == "" {
		return "none"
	}
	return value
}

func (t *Ticket) title() string {
	return fmt.Sprintf("Ticket #%v", t.Id)
}

func (t *Ticket) fields() []platform.Field {
	return []platform.Field{
		{Name: "Question", Value: t.Question},
		{Name: "Requesters", Value: orNone(mentionUsers(t.Requesters()))},
		{Name: "Helpers", Value: orNone(mentionUsers(t.Helpers()))},
	}
}

func (t *Ticket) statusColor() int {
	switch t.status {
	case StatusNew:
		return colorNew
	case StatusTaken:
		return colorTaken
	}
	return colorClosed
}

func (t *Ticket) dispatchMessage() platform.Message {
	settings := t.m.settings
	message := platform.Message{
		Title:  t.title(),
		Color:  t.statusColor(),
		Fields: t.fields(),
	}

	switch t.status {
	case StatusNew:
		message.Content = platform.MentionRole(t.RoleId)
		message.Description = fmt.Sprintf("Waiting for a helper. React with %v to accept.", settings.AcceptEmoji)
		message.Affordances = []platform.Affordance{{Key: settings.AcceptEmoji}}
	case StatusTaken:
		message.Description = fmt.Sprintf("Being handled by %v. React with %v to join.",
			orNone(mentionUsers(t.Helpers())), settings.JoinEmoji)
		message.Affordances = []platform.Affordance{{Key: settings.JoinEmoji}}
	default:
		message.Description = fmt.Sprintf("Closed: %v.", t.closeReason)
		message.Disabled = true
	}
	return message
}

func (t *Ticket) receiptMessage() platform.Message {
	message := platform.Message{
		Title: t.title(),
		Color: t.statusColor(),
		Fields: []platform.Field{
			{Name: "Question", Value: t.Question},
		},
	}

	switch t.status {
	case StatusNew:
		message.Description = "Your ticket was sent to the helpers. You will be added to a private room once someone accepts it."
		message.Affordances = []platform.Affordance{{Key: cancelKey, Label: "Cancel ticket", Emoji: "❌"}}
	case StatusTaken:
		description := fmt.Sprintf("Your ticket was accepted by %v.", mentionUsers(t.Helpers()))
		if t.room != nil && t.room.GeneralText() != nil {
			description += " Head over to " + platform.MentionChannel(t.room.GeneralText().Id) + "."
		}
		message.Description = description
	default:
		message.Description = fmt.Sprintf("Your ticket was closed: %v.", t.closeReason)
		message.Disabled = true
	}
	return message
}

func (t *Ticket) welcomeMessage() platform.Message {
	return platform.Message{
		Content:     mentionUsers(t.participants()),
		Title:       t.title(),
		Description: "Use this room to work on the question. Press Leave when you are done; the ticket closes once every requester left.",
		Color:       t.statusColor(),
		Fields:      t.fields(),
		Affordances: []platform.Affordance{{Key: leaveKey, Label: "Leave ticket", Emoji: "👋"}},
	}
}

func (t *Ticket) reminderMessage() platform.Message {
	return platform.Message{
		Content:     platform.MentionRole(t.RoleId),
		Description: fmt.Sprintf("Ticket #%v is still waiting for a helper.", t.Id),
	}
}

func (t *Ticket) keepMessage(reason string) platform.Message {
	settings := t.m.settings
	var description string
	if reason == ReasonAbandoned {
		description = fmt.Sprintf("Every helper left this ticket. Press Keep open within %v if you still need help, otherwise it will be closed.",
			formatMinutes(settings.BufferTime))
	} else {
		description = fmt.Sprintf("This room has been quiet for %v. Press Keep open within %v if you still need it, otherwise the ticket will be closed.",
			formatMinutes(settings.InactivePeriod), formatMinutes(settings.BufferTime))
	}
	return platform.Message{
		Content:     mentionUsers(t.participants()),
		Title:       t.title(),
		Description: description,
		Affordances: []platform.Affordance{{Key: keepKey, Label: "Keep open", Emoji: "✋"}},
	}
}

func formatMinutes(d time.Duration) string {
	minutes := int(d / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%v minutes", minutes)
}

func notice(text string) platform.Message {
	return platform.Message{Description: text}
}
