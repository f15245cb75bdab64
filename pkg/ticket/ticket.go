package ticket

import (
	"fmt"
	"time"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/clock"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/room"

	"github.com/emirpasic/gods/sets/linkedhashset"
	"go.uber.org/zap"
)

// Ticket is one help request. It is only ever touched from its
// manager's loop, so none of its state is locked.
type Ticket struct {
	Id        int
	Question  string
	RoleId    string
	CreatedAt time.Time

	// First requester is the group leader, who gets the receipt.
	requesters *linkedhashset.Set
	helpers    *linkedhashset.Set

	status      Status
	closeReason string
	acceptedAt  time.Time

	room *room.Room

	dispatch *platform.SentMessage
	receipt  *platform.SentMessage
	welcome  *platform.SentMessage

	subscriptions []platform.Subscription

	// Inactivity and abandonment collection state.
	excluded        bool
	abandonSequence bool
	recheck         *clock.Timer
	pendingAsk      *confirmation
	watcher         *schedule

	m      *Manager
	logger *zap.SugaredLogger
}

func newTicket(m *Manager, id int, requesters []string, question, roleId string) *Ticket {
	t := &Ticket{
		Id:         id,
		Question:   question,
		RoleId:     roleId,
		CreatedAt:  m.clock.Now(),
		requesters: linkedhashset.New(),
		helpers:    linkedhashset.New(),
		status:     StatusNew,
		m:          m,
		logger:     m.logger.With("ticket", id),
	}
	for _, requester := range requesters {
		t.requesters.Add(requester)
	}
	t.watcher = newSchedule(m.clock, m.settings.InactivePeriod, m.post, t.watcherDone, t.onIdle)
	return t
}

func (t *Ticket) Status() Status {
	return t.status
}

func (t *Ticket) Requesters() []string {
	return members(t.requesters)
}

func (t *Ticket) Helpers() []string {
	return members(t.helpers)
}

func (t *Ticket) Leader() string {
	return t.requesters.Values()[0].(string)
}

func (t *Ticket) participants() []string {
	return append(t.Requesters(), t.Helpers()...)
}

func (t *Ticket) isParticipant(userId string) bool {
	return t.requesters.Contains(userId) || t.helpers.Contains(userId)
}

func members(set *linkedhashset.Set) []string {
	result := make([]string, 0, set.Size())
	for _, value := range set.Values() {
		result = append(result, value.(string))
	}
	return result
}

// open posts the dispatch message and the requester's receipt. Only a
// failed dispatch fails the ticket; the receipt is a courtesy.
func (t *Ticket) open() error {
	ctx := t.m.ctx

	dispatch, err := t.m.platform.SendMessage(ctx, t.m.settings.DispatchChannelId, t.dispatchMessage())
	if err != nil {
		return fmt.Errorf("send dispatch of ticket[%v]: %w", t.Id, err)
	}
	t.dispatch = dispatch
	t.subscribe(t.m.events.OnAffordance(dispatch.Id, func(e platform.AffordanceTriggered) {
		t.m.post(func() { t.onDispatchAffordance(e) })
	}))

	receipt, err := t.m.platform.SendDirect(ctx, t.Leader(), t.receiptMessage())
	if err != nil {
		t.logger.Warnf("failed to send receipt to leader[%v], err[%v]", t.Leader(), err)
	} else {
		t.receipt = receipt
		t.subscribe(t.m.events.OnAffordance(receipt.Id, func(e platform.AffordanceTriggered) {
			t.m.post(func() { t.onReceiptAffordance(e) })
		}))
	}

	t.logger.Infof("opened requesters[%v] role[%v] dispatch[%v]", t.Requesters(), t.RoleId, dispatch.Id)
	return nil
}

func (t *Ticket) subscribe(subscription platform.Subscription) {
	t.subscriptions = append(t.subscriptions, subscription)
}

func (t *Ticket) onDispatchAffordance(e platform.AffordanceTriggered) {
	if e.IsBot || t.status == StatusClosed {
		return
	}
	if t.requesters.Contains(e.UserId) {
		t.logger.Debugf("ignoring requester[%v] on dispatch key[%v]", e.UserId, e.Key)
		return
	}

	settings := t.m.settings
	switch {
	case t.status == StatusNew && e.Key == settings.AcceptEmoji:
		if err := t.accept(e.UserId); err != nil {
			t.logger.Errorf("failed to accept by helper[%v], err[%v]", e.UserId, err)
		}
	case t.status == StatusTaken && (e.Key == settings.JoinEmoji || e.Key == settings.AcceptEmoji):
		t.join(e.UserId)
	}
}

func (t *Ticket) onReceiptAffordance(e platform.AffordanceTriggered) {
	if e.IsBot || e.Key != cancelKey || t.status != StatusNew {
		return
	}
	if !t.requesters.Contains(e.UserId) {
		return
	}
	t.logger.Infof("cancelled by requester[%v]", e.UserId)
	t.close(ReasonCancelled)
}

func (t *Ticket) onWelcomeAffordance(e platform.AffordanceTriggered) {
	if e.IsBot || e.Key != leaveKey {
		return
	}
	t.leave(e.UserId)
}

func (t *Ticket) onRoomMessage(e platform.MessageCreated) {
	if e.IsBot || t.status != StatusTaken {
		return
	}
	t.watcher.Postpone()
}

// accept moves a new ticket to taken. The room is created first; if
// that fails the ticket stays new, its reminder keeps running and the
// helper is told to try again.
func (t *Ticket) accept(helperId string) error {
	ctx := t.m.ctx

	r, err := room.New(t.m.platform, t.m.settings.GuildId, fmt.Sprintf("ticket-%v", t.Id), nil, t.logger).Init(ctx)
	if err != nil {
		t.m.notify(helperId, fmt.Sprintf("The room for ticket #%v could not be created. Please try accepting again.", t.Id))
		return fmt.Errorf("create room: %w", err)
	}

	t.m.disarmReminder(t.Id)
	t.room = r
	t.status = StatusTaken
	t.acceptedAt = t.m.clock.Now()
	t.helpers.Add(helperId)

	for _, identity := range t.participants() {
		if err := r.GrantAccess(ctx, identity); err != nil {
			t.logger.Warnf("failed to grant user[%v], err[%v]", identity, err)
			t.m.notify(identity, fmt.Sprintf("You could not be added to the room of ticket #%v. Please ask staff for access.", t.Id))
		}
	}

	text := r.GeneralText()
	welcome, err := t.m.platform.SendMessage(ctx, text.Id, t.welcomeMessage())
	if err != nil {
		t.logger.Warnf("failed to send welcome, err[%v]", err)
	} else {
		t.welcome = welcome
		t.subscribe(t.m.events.OnAffordance(welcome.Id, func(e platform.AffordanceTriggered) {
			t.m.post(func() { t.onWelcomeAffordance(e) })
		}))
	}
	t.subscribe(t.m.events.OnChannelMessage(text.Id, func(e platform.MessageCreated) {
		t.m.post(func() { t.onRoomMessage(e) })
	}))

	t.editDispatch()
	t.editReceipt()
	t.m.stats.updateAvgAccept(t.acceptedAt.Sub(t.CreatedAt))

	if t.m.settings.IsGcEnabled && !t.excluded {
		t.watcher.Start()
	}

	t.logger.Infof("accepted by helper[%v] room[%v]", helperId, r.Category().Id)
	return nil
}

func (t *Ticket) join(helperId string) {
	if t.helpers.Contains(helperId) {
		return
	}
	if err := t.room.GrantAccess(t.m.ctx, helperId); err != nil {
		t.logger.Errorf("failed to grant joining helper[%v], err[%v]", helperId, err)
		t.m.notify(helperId, fmt.Sprintf("You could not be added to ticket #%v. Please try again.", t.Id))
		return
	}
	t.helpers.Add(helperId)

	if t.abandonSequence {
		t.cancelAbandonment()
	}

	t.editDispatch()
	t.editWelcome()
	t.logger.Infof("helper[%v] joined, helpers[%v]", helperId, t.Helpers())
}

func (t *Ticket) leave(userId string) {
	if t.status != StatusTaken {
		return
	}

	switch {
	case t.requesters.Contains(userId):
		t.requesters.Remove(userId)
	case t.helpers.Contains(userId):
		t.helpers.Remove(userId)
	default:
		return
	}
	if err := t.room.RevokeAccess(t.m.ctx, userId); err != nil {
		t.logger.Warnf("failed to revoke user[%v], err[%v]", userId, err)
	}
	t.logger.Infof("user[%v] left, requesters[%v] helpers[%v]", userId, t.Requesters(), t.Helpers())

	if t.requesters.Empty() {
		t.close(ReasonNoUsers)
		return
	}

	t.editDispatch()
	t.editWelcome()

	if t.helpers.Empty() && !t.excluded && !t.abandonSequence && t.m.settings.IsGcEnabled {
		t.abandonSequence = true
		t.askToDelete(ReasonAbandoned)
	}
}

// close is the only way a ticket ends. Messages are edited before the
// room goes away; closing twice does nothing.
func (t *Ticket) close(reason string) {
	if t.status == StatusClosed {
		return
	}
	t.status = StatusClosed
	t.closeReason = reason

	t.editDispatch()
	t.editReceipt()

	if t.room != nil {
		if err := t.room.Delete(t.m.ctx); err != nil {
			t.logger.Errorf("failed to delete room, err[%v]", err)
		}
	}

	t.release()
	t.m.deregister(t)
	t.m.stats.Closed++
	t.logger.Infof("closed reason[%v]", reason)
}

// release stops every timer and subscription of the ticket.
func (t *Ticket) release() {
	t.watcher.Stop()
	if t.recheck != nil {
		t.recheck.Stop()
		t.recheck = nil
	}
	if t.pendingAsk != nil {
		t.pendingAsk.stop()
		t.pendingAsk = nil
	}
	for _, subscription := range t.subscriptions {
		subscription.Close()
	}
	t.subscriptions = nil
}

func (t *Ticket) remind() bool {
	if _, err := t.m.platform.SendMessage(t.m.ctx, t.m.settings.DispatchChannelId, t.reminderMessage()); err != nil {
		t.logger.Warnf("failed to send reminder, err[%v]", err)
	}
	return true
}

func (t *Ticket) editDispatch() {
	t.edit(t.dispatch, t.dispatchMessage(), "dispatch")
}

func (t *Ticket) editReceipt() {
	t.edit(t.receipt, t.receiptMessage(), "receipt")
}

func (t *Ticket) editWelcome() {
	if t.status == StatusClosed {
		return
	}
	t.edit(t.welcome, t.welcomeMessage(), "welcome")
}

func (t *Ticket) edit(sent *platform.SentMessage, message platform.Message, name string) {
	if sent == nil {
		return
	}
	if err := t.m.platform.EditMessage(t.m.ctx, sent.ChannelId, sent.Id, message); err != nil {
		t.logger.Warnf("failed to edit %v message[%v], err[%v]", name, sent.Id, err)
	}
}

// Snapshot is a copy of a ticket's state for callers outside the
// manager loop.
type Snapshot struct {
	Id            int       `json:"id"`
	Question      string    `json:"question"`
	RoleId        string    `json:"roleId"`
	Status        Status    `json:"status"`
	Requesters    []string  `json:"requesters"`
	Helpers       []string  `json:"helpers"`
	Excluded      bool      `json:"excluded"`
	CreatedAt     time.Time `json:"createdAt"`
	CategoryId    string    `json:"categoryId,omitempty"`
	TextChannelId string    `json:"textChannelId,omitempty"`

	// A keep-open confirmation is waiting for an answer.
	AwaitingConfirmation bool `json:"awaitingConfirmation"`
}

func (t *Ticket) snapshot() Snapshot {
	s := Snapshot{
		Id:                   t.Id,
		Question:             t.Question,
		RoleId:               t.RoleId,
		Status:               t.status,
		Requesters:           t.Requesters(),
		Helpers:              t.Helpers(),
		Excluded:             t.excluded,
		CreatedAt:            t.CreatedAt,
		AwaitingConfirmation: t.pendingAsk != nil,
	}
	if t.room != nil {
		if category := t.room.Category(); category != nil {
			s.CategoryId = category.Id
		}
		if text := t.room.GeneralText(); text != nil {
			s.TextChannelId = text.Id
		}
	}
	return s
}
