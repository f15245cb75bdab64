// Package ticket runs help-desk tickets: requesters open them from an
// intake console, helpers accept and join them, and they close when
// everybody left, on request, on staff removal or after inactivity.
package ticket

import (
	"context"
	"fmt"
	"time"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/clock"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/config"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/infra"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"

	"github.com/emirpasic/gods/maps/hashmap"
	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/sets/hashset"
	"go.uber.org/zap"
)

type ManagerDeps struct {
	Platform      platform.Platform
	Events        platform.Events
	Clock         clock.Clock
	Config        *config.Config
	LoggerFactory *infra.LoggerFactory
}

// Manager owns every ticket of one desk. All ticket state is touched
// only by the goroutine running Run; platform events, timers and API
// calls are posted to it as actions.
type Manager struct {
	settings config.DeskSettings

	platform platform.Platform
	events   platform.Events
	clock    clock.Clock
	config   *config.Config

	actions chan func()
	done    chan struct{}

	// Context of Run, used for platform calls made by the loop.
	ctx context.Context

	// Key value: ticketId -> *Ticket, in creation order. Closed
	// tickets are removed.
	tickets *linkedhashmap.Map

	// Last allocated ticket id. Never decreases.
	lastId int

	// Key value: ticketId -> *schedule. Holds exactly the new tickets
	// when reminders are enabled.
	reminders *hashmap.Map

	// Key value: roleId -> *TicketType, in the order shown on the
	// console.
	ticketTypes *linkedhashmap.Map

	console             *platform.SentMessage
	consoleSubscription platform.Subscription
	consoleTitle        string
	consoleDescription  string

	// Key value: requesterId -> *prompt.
	prompts *hashmap.Map

	stats *Stats

	logger *zap.SugaredLogger
}

// NewManager rejects invalid settings up front so no timer ever runs
// with a bad duration.
func NewManager(deps ManagerDeps, settings config.DeskSettings) (*Manager, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("desk[%v]: %w", settings.DeskId, err)
	}

	logger := deps.LoggerFactory.Create("Manager").Sugar().With("desk", settings.DeskId)
	m := &Manager{
		settings:    settings,
		platform:    deps.Platform,
		events:      deps.Events,
		clock:       deps.Clock,
		config:      deps.Config,
		actions:     make(chan func(), 1024),
		done:        make(chan struct{}),
		ctx:         context.Background(),
		tickets:     linkedhashmap.New(),
		reminders:   hashmap.New(),
		ticketTypes: linkedhashmap.New(),
		prompts:     hashmap.New(),
		stats:       newStats(deps.Config, logger),
		logger:      logger,
	}
	m.ticketTypes.Put(settings.HelperRoleId, &TicketType{
		RoleId: settings.HelperRoleId,
		Label:  generalTicketType,
		Emoji:  settings.HelperEmoji,
	})
	return m, nil
}

func (m *Manager) Settings() config.DeskSettings {
	return m.settings
}

// Run processes actions until ctx is done. On return every timer and
// subscription of the desk is released; rooms of open tickets are left
// in place.
func (m *Manager) Run(ctx context.Context) {
	m.ctx = ctx
	defer close(m.done)

	statsTicker := m.clock.NewTicker(m.config.StatsLogInterval())
	defer statsTicker.Stop()

	m.logger.Infof("running settings[%+v]", m.settings)
	for {
		select {
		case action := <-m.actions:
			action()

		case <-statsTicker.C:
			m.logger.Infof("current stats[%+v]", m.stats.snapshot(m.tickets))

		case <-ctx.Done():
			m.shutdown()
			return
		}
	}
}

func (m *Manager) shutdown() {
	for _, value := range m.tickets.Values() {
		value.(*Ticket).release()
	}
	for _, value := range m.reminders.Values() {
		value.(*schedule).Stop()
	}
	for _, value := range m.prompts.Values() {
		value.(*prompt).stop()
	}
	if m.consoleSubscription != nil {
		m.consoleSubscription.Close()
	}
	m.logger.Infof("stopped with open tickets[%v]", m.tickets.Size())
}

// post queues an action for the loop. Actions posted after the loop
// stopped are dropped.
func (m *Manager) post(action func()) {
	select {
	case m.actions <- action:
	case <-m.done:
	}
}

// call runs f on the loop and waits for its result.
func call[T any](ctx context.Context, m *Manager, f func() (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	finished := make(chan struct{})
	action := func() {
		result, err = f()
		close(finished)
	}

	var zero T
	select {
	case m.actions <- action:
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-m.done:
		return zero, ErrManagerStopped
	}

	select {
	case <-finished:
		return result, err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-m.done:
		return zero, ErrManagerStopped
	}
}

// NewTicket opens a ticket for a requester group; the first requester
// leads the group. This is the only way tickets are created.
func (m *Manager) NewTicket(ctx context.Context, requesters []string, question, roleId string) (int, error) {
	return call(ctx, m, func() (int, error) {
		t, err := m.newTicket(requesters, question, roleId)
		if err != nil {
			return 0, err
		}
		return t.Id, nil
	})
}

func (m *Manager) newTicket(requesters []string, question, roleId string) (*Ticket, error) {
	if len(requesters) == 0 {
		return nil, ErrNoRequesters
	}

	m.lastId++
	t := newTicket(m, m.lastId, requesters, question, roleId)
	m.tickets.Put(t.Id, t)

	if m.settings.IsReminderEnabled {
		reminder := newSchedule(m.clock, m.settings.ReminderInterval, m.post,
			func() bool { return t.status != StatusNew }, t.remind)
		m.reminders.Put(t.Id, reminder)
		reminder.Start()
	}

	if err := t.open(); err != nil {
		t.status = StatusClosed
		t.release()
		m.deregister(t)
		return nil, err
	}

	m.stats.Opened++
	return t, nil
}

func (m *Manager) disarmReminder(id int) {
	value, ok := m.reminders.Get(id)
	if !ok {
		return
	}
	value.(*schedule).Stop()
	m.reminders.Remove(id)
}

func (m *Manager) deregister(t *Ticket) {
	m.disarmReminder(t.Id)
	m.tickets.Remove(t.Id)
}

// notify sends a direct message and only logs failures.
func (m *Manager) notify(userId, text string) {
	if _, err := m.platform.SendDirect(m.ctx, userId, notice(text)); err != nil {
		m.logger.Warnf("failed to notify user[%v], err[%v]", userId, err)
	}
}

// RemoveTicket closes one ticket. Removing an unknown or already closed
// ticket does nothing and reports false.
func (m *Manager) RemoveTicket(ctx context.Context, id int) (bool, error) {
	return call(ctx, m, func() (bool, error) {
		return len(m.removeTickets([]int{id})) == 1, nil
	})
}

// RemoveTicketsByID closes the given tickets and returns the ids that
// were actually open.
func (m *Manager) RemoveTicketsByID(ctx context.Context, ids []int) ([]int, error) {
	return call(ctx, m, func() ([]int, error) {
		return m.removeTickets(ids), nil
	})
}

// RemoveAllTickets closes every ticket whose id is not in except.
func (m *Manager) RemoveAllTickets(ctx context.Context, except []int) ([]int, error) {
	return call(ctx, m, func() ([]int, error) {
		kept := hashset.New()
		for _, id := range except {
			kept.Add(id)
		}

		var targets []int
		for _, key := range m.tickets.Keys() {
			if id := key.(int); !kept.Contains(id) {
				targets = append(targets, id)
			}
		}
		return m.removeTickets(targets), nil
	})
}

// RemoveTicketsByAge closes every ticket at least minAgeMinutes old.
// Only desks in advanced mode support it.
func (m *Manager) RemoveTicketsByAge(ctx context.Context, minAgeMinutes int) ([]int, error) {
	return call(ctx, m, func() ([]int, error) {
		if !m.settings.IsAdvancedMode {
			return nil, ErrAdvancedModeRequired
		}

		minAge := time.Duration(minAgeMinutes) * time.Minute
		now := m.clock.Now()
		var targets []int
		for _, value := range m.tickets.Values() {
			t := value.(*Ticket)
			if now.Sub(t.CreatedAt) >= minAge {
				targets = append(targets, t.Id)
			}
		}
		m.logger.Infof("removing tickets older than minAge[%v], matched[%v]", minAge, targets)
		return m.removeTickets(targets), nil
	})
}

func (m *Manager) removeTickets(ids []int) []int {
	removed := []int{}
	for _, id := range ids {
		value, ok := m.tickets.Get(id)
		if !ok {
			continue
		}
		value.(*Ticket).close(ReasonRemoved)
		removed = append(removed, id)
	}
	return removed
}

// IncludeExclude excludes a ticket from garbage collection or includes
// it again.
func (m *Manager) IncludeExclude(ctx context.Context, id int, exclude bool) error {
	_, err := call(ctx, m, func() (struct{}, error) {
		value, ok := m.tickets.Get(id)
		if !ok {
			return struct{}{}, fmt.Errorf("ticket[%v]: %w", id, ErrUnknownTicket)
		}
		value.(*Ticket).includeExclude(exclude)
		return struct{}{}, nil
	})
	return err
}

func (m *Manager) Snapshot(ctx context.Context, id int) (Snapshot, error) {
	return call(ctx, m, func() (Snapshot, error) {
		value, ok := m.tickets.Get(id)
		if !ok {
			return Snapshot{}, fmt.Errorf("ticket[%v]: %w", id, ErrUnknownTicket)
		}
		return value.(*Ticket).snapshot(), nil
	})
}

// Snapshots returns every open ticket in creation order.
func (m *Manager) Snapshots(ctx context.Context) ([]Snapshot, error) {
	return call(ctx, m, func() ([]Snapshot, error) {
		snapshots := make([]Snapshot, 0, m.tickets.Size())
		for _, value := range m.tickets.Values() {
			snapshots = append(snapshots, value.(*Ticket).snapshot())
		}
		return snapshots, nil
	})
}

func (m *Manager) Stats(ctx context.Context) (DeskStats, error) {
	return call(ctx, m, func() (DeskStats, error) {
		return m.stats.snapshot(m.tickets), nil
	})
}
