package ticket_test

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/clock"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/config"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/gateway"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/infra"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform/platformtest"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/ticket"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

const (
	guildId     = "g1"
	helperRole  = "helpers"
	acceptEmoji = "✅"
	joinEmoji   = "➕"
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// desk runs one manager against an in-memory platform, the real event
// hub and a fake clock.
type desk struct {
	ctx    context.Context
	cancel context.CancelFunc

	platform *platformtest.Platform
	hub      *gateway.Hub
	clock    *clock.FakeClock
	manager  *ticket.Manager

	dispatchChannel string
	intakeChannel   string
}

func baseSettings(p *platformtest.Platform) config.DeskSettings {
	return config.DeskSettings{
		GuildId:           guildId,
		DeskId:            "main",
		DispatchChannelId: p.AddChannel(guildId, "dispatch", platform.TextChannel),
		IntakeChannelId:   p.AddChannel(guildId, "intake", platform.TextChannel),
		AcceptEmoji:       acceptEmoji,
		JoinEmoji:         joinEmoji,
		HelperRoleId:      helperRole,
		HelperEmoji:       "🙋",
	}
}

// startDesk builds and runs a manager; tweak adjusts the settings
// before the manager is created.
func startDesk(tweak func(*config.DeskSettings)) *desk {
	d := &desk{
		platform: platformtest.New(),
		clock:    clock.Fake(start),
	}
	loggerFactory := infra.NewLoggerFactory(zap.NewNop())
	d.hub = gateway.ProvideHub(loggerFactory)

	settings := baseSettings(d.platform)
	if tweak != nil {
		tweak(&settings)
	}
	d.dispatchChannel = settings.DispatchChannelId
	d.intakeChannel = settings.IntakeChannelId

	manager, err := ticket.NewManager(ticket.ManagerDeps{
		Platform:      d.platform,
		Events:        d.hub,
		Clock:         d.clock,
		Config:        config.CFG,
		LoggerFactory: loggerFactory,
	}, settings)
	Expect(err).ToNot(HaveOccurred())
	d.manager = manager

	d.ctx, d.cancel = context.WithCancel(context.Background())
	go manager.Run(d.ctx)
	DeferCleanup(d.cancel)
	return d
}

func withReminders(minutes int) func(*config.DeskSettings) {
	return func(s *config.DeskSettings) {
		s.IsReminderEnabled = true
		s.ReminderInterval = time.Duration(minutes) * time.Minute
	}
}

func withGc(inactiveMinutes, bufferMinutes int) func(*config.DeskSettings) {
	return func(s *config.DeskSettings) {
		s.IsGcEnabled = true
		s.InactivePeriod = time.Duration(inactiveMinutes) * time.Minute
		s.BufferTime = time.Duration(bufferMinutes) * time.Minute
	}
}

// flush waits until the manager handled everything posted so far.
func (d *desk) flush() {
	_, err := d.manager.Stats(d.ctx)
	Expect(err).ToNot(HaveOccurred())
}

func (d *desk) advance(duration time.Duration) {
	d.clock.Advance(duration)
	d.flush()
}

func (d *desk) open(requesters ...string) int {
	id, err := d.manager.NewTicket(d.ctx, requesters, "need help", helperRole)
	Expect(err).ToNot(HaveOccurred())
	return id
}

func (d *desk) trigger(messageId, userId, key string) {
	d.hub.Publish(platform.AffordanceTriggered{
		Kind:      platform.ReactionAffordance,
		GuildId:   guildId,
		MessageId: messageId,
		UserId:    userId,
		Key:       key,
	})
	d.flush()
}

func (d *desk) say(channelId, authorId, content string, mentions ...string) {
	d.hub.Publish(platform.MessageCreated{
		GuildId:   guildId,
		ChannelId: channelId,
		MessageId: "said-" + authorId,
		AuthorId:  authorId,
		Content:   content,
		Mentions:  mentions,
	})
	d.flush()
}

// dispatchOf finds the dispatch message of a ticket.
func (d *desk) dispatchOf(id int) platformtest.MessageRecord {
	for _, record := range d.platform.MessagesIn(d.dispatchChannel) {
		if record.Message.Title == ticketTitle(id) {
			return record
		}
	}
	Fail("no dispatch message for ticket")
	return platformtest.MessageRecord{}
}

func (d *desk) refreshed(record platformtest.MessageRecord) platformtest.MessageRecord {
	current, ok := d.platform.Message(record.Id)
	Expect(ok).To(BeTrue())
	return current
}

func (d *desk) accept(id int, helperId string) {
	d.trigger(d.dispatchOf(id).Id, helperId, acceptEmoji)
}

func (d *desk) snapshot(id int) ticket.Snapshot {
	snapshot, err := d.manager.Snapshot(d.ctx, id)
	Expect(err).ToNot(HaveOccurred())
	return snapshot
}

func (d *desk) isOpen(id int) bool {
	_, err := d.manager.Snapshot(d.ctx, id)
	return err == nil
}

// welcomeOf returns the first message posted to a taken ticket's room.
func (d *desk) welcomeOf(id int) platformtest.MessageRecord {
	messages := d.platform.MessagesIn(d.snapshot(id).TextChannelId)
	Expect(messages).ToNot(BeEmpty())
	return messages[0]
}

// keepPrompts returns the keep-open questions posted to a room.
func (d *desk) keepPrompts(textChannelId string) []platformtest.MessageRecord {
	var prompts []platformtest.MessageRecord
	for _, record := range d.platform.MessagesIn(textChannelId) {
		for _, affordance := range record.Message.Affordances {
			if affordance.Key == "keep" {
				prompts = append(prompts, record)
			}
		}
	}
	return prompts
}

func (d *desk) reminders() int {
	count := 0
	for _, record := range d.platform.MessagesIn(d.dispatchChannel) {
		if strings.Contains(record.Message.Description, "still waiting") {
			count++
		}
	}
	return count
}

func ticketTitle(id int) string {
	return fmt.Sprintf("Ticket #%v", id)
}

func (d *desk) voiceOf(id int) string {
	for _, channel := range d.platform.Children(d.snapshot(id).CategoryId) {
		if channel.Kind == platform.VoiceChannel {
			return channel.Id
		}
	}
	Fail("ticket room has no voice channel")
	return ""
}
