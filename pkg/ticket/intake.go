package ticket

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/clock"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"

	"github.com/emirpasic/gods/sets/linkedhashset"
)

const generalTicketType = "General"

// The console renders at most five rows of five buttons.
const maxTicketTypes = 25

// Typing this instead of a question aborts the prompt.
const cancelWord = "cancel"

var mentionPattern = regexp.MustCompile(`<@[!&]?[^>\s]+>`)

// TicketType is one choice on the intake console, bound to the role
// that gets pinged for it.
type TicketType struct {
	RoleId string `json:"roleId"`
	Label  string `json:"label"`
	Emoji  string `json:"emoji"`
}

// prompt waits for a requester's one-message description.
type prompt struct {
	requesterId string
	roleId      string
	channelId   string

	message      *platform.SentMessage
	subscription platform.Subscription
	timer        *clock.Timer
}

func (p *prompt) stop() {
	p.subscription.Close()
	p.timer.Stop()
}

// SendIntakeConsole publishes the ticket type selection to the intake
// channel, replacing a console published before.
func (m *Manager) SendIntakeConsole(ctx context.Context, title, description string) error {
	_, err := call(ctx, m, func() (struct{}, error) {
		return struct{}{}, m.sendIntakeConsole(title, description)
	})
	return err
}

func (m *Manager) sendIntakeConsole(title, description string) error {
	if m.console != nil {
		m.consoleSubscription.Close()
		if err := m.platform.DeleteMessage(m.ctx, m.console.ChannelId, m.console.Id); err != nil {
			m.logger.Warnf("failed to delete previous console[%v], err[%v]", m.console.Id, err)
		}
		m.console = nil
	}

	m.consoleTitle = title
	m.consoleDescription = description
	sent, err := m.platform.SendMessage(m.ctx, m.settings.IntakeChannelId, m.consoleMessage())
	if err != nil {
		return fmt.Errorf("send intake console: %w", err)
	}
	m.console = sent
	m.consoleSubscription = m.events.OnAffordance(sent.Id, func(e platform.AffordanceTriggered) {
		m.post(func() { m.onConsoleAffordance(e) })
	})

	m.logger.Infof("published intake console[%v] types[%v]", sent.Id, m.ticketTypes.Size())
	return nil
}

// AddTicketType adds a choice to the console, or relabels the choice of
// a role that already has one. A published console is updated in place.
func (m *Manager) AddTicketType(ctx context.Context, roleId, label, emoji string) error {
	_, err := call(ctx, m, func() (struct{}, error) {
		return struct{}{}, m.addTicketType(roleId, label, emoji)
	})
	return err
}

func (m *Manager) addTicketType(roleId, label, emoji string) error {
	if roleId == "" || label == "" {
		return ErrInvalidTicketType
	}
	if _, exists := m.ticketTypes.Get(roleId); !exists && m.ticketTypes.Size() >= maxTicketTypes {
		return ErrTooManyTicketTypes
	}
	m.ticketTypes.Put(roleId, &TicketType{RoleId: roleId, Label: label, Emoji: emoji})

	if m.console == nil {
		return nil
	}
	if err := m.platform.EditMessage(m.ctx, m.console.ChannelId, m.console.Id, m.consoleMessage()); err != nil {
		return fmt.Errorf("update intake console: %w", err)
	}
	m.logger.Infof("added ticket type role[%v] label[%v]", roleId, label)
	return nil
}

// TicketTypes returns the console choices in display order.
func (m *Manager) TicketTypes(ctx context.Context) ([]TicketType, error) {
	return call(ctx, m, func() ([]TicketType, error) {
		types := make([]TicketType, 0, m.ticketTypes.Size())
		for _, value := range m.ticketTypes.Values() {
			types = append(types, *value.(*TicketType))
		}
		return types, nil
	})
}

func (m *Manager) consoleMessage() platform.Message {
	message := platform.Message{
		Title:       m.consoleTitle,
		Description: m.consoleDescription,
	}
	for _, value := range m.ticketTypes.Values() {
		ticketType := value.(*TicketType)
		message.Affordances = append(message.Affordances, platform.Affordance{
			Key:   ticketTypeKeyPrefix + ticketType.RoleId,
			Label: ticketType.Label,
			Emoji: ticketType.Emoji,
		})
	}
	return message
}

func (m *Manager) onConsoleAffordance(e platform.AffordanceTriggered) {
	if e.IsBot || !strings.HasPrefix(e.Key, ticketTypeKeyPrefix) {
		return
	}
	value, ok := m.ticketTypes.Get(strings.TrimPrefix(e.Key, ticketTypeKeyPrefix))
	if !ok {
		m.logger.Debugf("ignoring unknown ticket type key[%v]", e.Key)
		return
	}

	ticketType := value.(*TicketType)
	if err := m.startTicketCreation(e.UserId, ticketType.RoleId, m.settings.IntakeChannelId); err != nil {
		m.logger.Infof("ticket creation for requester[%v] role[%v] not started, err[%v]", e.UserId, ticketType.RoleId, err)
	}
}

// StartTicketCreationProcess asks the requester to describe the problem
// in channelId. It returns once the prompt is posted; the ticket is
// created when the answer arrives.
func (m *Manager) StartTicketCreationProcess(ctx context.Context, requesterId, roleId, channelId string) error {
	_, err := call(ctx, m, func() (struct{}, error) {
		return struct{}{}, m.startTicketCreation(requesterId, roleId, channelId)
	})
	return err
}

func (m *Manager) startTicketCreation(requesterId, roleId, channelId string) error {
	if _, ok := m.prompts.Get(requesterId); ok {
		m.notify(requesterId, "You are already describing a ticket. Answer that prompt first.")
		return ErrPromptPending
	}

	count, err := m.platform.RoleMemberCount(m.ctx, m.settings.GuildId, roleId)
	if err != nil {
		m.notify(requesterId, "Your ticket could not be started. Please try again later.")
		return fmt.Errorf("count members of role[%v]: %w", roleId, err)
	}
	if count == 0 {
		m.notify(requesterId, "No helpers with that role are available right now. Please pick another ticket type or try again later.")
		return fmt.Errorf("role[%v]: %w", roleId, ErrNoHelpersAvailable)
	}

	sent, err := m.platform.SendMessage(m.ctx, channelId, platform.Message{
		Content: platform.MentionUser(requesterId),
		Description: fmt.Sprintf("Describe your problem in one message within %v. Mention teammates to add them to the ticket, or type `%v` to stop.",
			m.config.PromptTimeout(), cancelWord),
	})
	if err != nil {
		m.notify(requesterId, "Your ticket could not be started. Please try again later.")
		return fmt.Errorf("send prompt: %w", err)
	}

	p := &prompt{
		requesterId: requesterId,
		roleId:      roleId,
		channelId:   channelId,
		message:     sent,
	}
	p.subscription = m.events.OnChannelMessage(channelId, func(e platform.MessageCreated) {
		if e.IsBot || e.AuthorId != requesterId {
			return
		}
		m.post(func() { m.onPromptReply(p, e) })
	})
	p.timer = m.clock.AfterFunc(m.config.PromptTimeout(), func() {
		m.post(func() { m.onPromptTimeout(p) })
	})
	m.prompts.Put(requesterId, p)

	m.logger.Debugf("prompting requester[%v] role[%v] channel[%v]", requesterId, roleId, channelId)
	return nil
}

func (m *Manager) onPromptReply(p *prompt, e platform.MessageCreated) {
	if !m.isCurrentPrompt(p) {
		return
	}
	m.finishPrompt(p)
	if err := m.platform.DeleteMessage(m.ctx, e.ChannelId, e.MessageId); err != nil {
		m.logger.Debugf("failed to delete prompt reply[%v], err[%v]", e.MessageId, err)
	}

	content := strings.TrimSpace(e.Content)
	if strings.EqualFold(content, cancelWord) {
		m.notify(p.requesterId, "Your ticket request was cancelled.")
		return
	}

	question := strings.Join(strings.Fields(mentionPattern.ReplaceAllString(content, "")), " ")
	if question == "" {
		m.notify(p.requesterId, "Your message did not describe a problem. Please start over from the ticket console.")
		return
	}

	group := linkedhashset.New(p.requesterId)
	for _, mention := range e.Mentions {
		group.Add(mention)
	}

	if _, err := m.newTicket(members(group), question, p.roleId); err != nil {
		m.logger.Errorf("failed to create ticket for requester[%v], err[%v]", p.requesterId, err)
		m.notify(p.requesterId, "Your ticket could not be created. Please try again later.")
	}
}

func (m *Manager) onPromptTimeout(p *prompt) {
	if !m.isCurrentPrompt(p) {
		return
	}
	m.finishPrompt(p)
	m.notify(p.requesterId, "You did not describe your problem in time. Please start over from the ticket console.")
}

func (m *Manager) isCurrentPrompt(p *prompt) bool {
	value, ok := m.prompts.Get(p.requesterId)
	return ok && value.(*prompt) == p
}

func (m *Manager) finishPrompt(p *prompt) {
	p.stop()
	m.prompts.Remove(p.requesterId)
	if err := m.platform.DeleteMessage(m.ctx, p.channelId, p.message.Id); err != nil {
		m.logger.Debugf("failed to delete prompt[%v], err[%v]", p.message.Id, err)
	}
}
