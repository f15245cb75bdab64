package ticket_test

import (
	"context"
	"errors"
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

var _ = Describe("Manager", func() {
	Describe("NewManager", func() {
		var (
			p        *platformtest.Platform
			settings config.DeskSettings
		)

		newManager := func() error {
			loggerFactory := infra.NewLoggerFactory(zap.NewNop())
			_, err := ticket.NewManager(ticket.ManagerDeps{
				Platform:      p,
				Events:        gateway.ProvideHub(loggerFactory),
				Clock:         clock.Fake(start),
				Config:        config.CFG,
				LoggerFactory: loggerFactory,
			}, settings)
			return err
		}

		BeforeEach(func() {
			p = platformtest.New()
			settings = baseSettings(p)
		})

		It("accepts valid settings", func() {
			Expect(newManager()).To(Succeed())
		})

		It("rejects gc without a buffer time", func() {
			withGc(10, 0)(&settings)
			Expect(newManager()).To(MatchError(config.ErrInvalidDeskConfig))
		})

		It("rejects reminders without an interval", func() {
			withReminders(0)(&settings)
			Expect(newManager()).To(MatchError(config.ErrInvalidDeskConfig))
		})
	})

	Describe("NewTicket", func() {
		var d *desk

		BeforeEach(func() {
			d = startDesk(nil)
		})

		It("dispatches the ticket to helpers and sends the leader a receipt", func() {
			id := d.open("u1", "u2")

			dispatch := d.dispatchOf(id)
			Expect(dispatch.Message.Content).To(Equal(platform.MentionRole(helperRole)))
			Expect(dispatch.Message.Affordances).To(ConsistOf(HaveField("Key", acceptEmoji)))
			Expect(dispatch.Message.Fields).To(ContainElement(platform.Field{Name: "Question", Value: "need help"}))

			receipts := d.platform.Directs("u1")
			Expect(receipts).To(HaveLen(1))
			Expect(receipts[0].Message.Affordances).To(ConsistOf(HaveField("Key", "cancel")))
			Expect(d.platform.Directs("u2")).To(BeEmpty())

			snapshot := d.snapshot(id)
			Expect(snapshot.Status).To(Equal(ticket.StatusNew))
			Expect(snapshot.Requesters).To(Equal([]string{"u1", "u2"}))
			Expect(snapshot.Helpers).To(BeEmpty())
			Expect(snapshot.CreatedAt).To(Equal(start))
		})

		It("never reuses ids", func() {
			Expect([]int{d.open("u1"), d.open("u2"), d.open("u3")}).To(Equal([]int{1, 2, 3}))

			removed, err := d.manager.RemoveTicket(d.ctx, 3)
			Expect(err).ToNot(HaveOccurred())
			Expect(removed).To(BeTrue())

			Expect(d.open("u4")).To(Equal(4))
		})

		It("requires a requester", func() {
			_, err := d.manager.NewTicket(d.ctx, nil, "need help", helperRole)
			Expect(err).To(MatchError(ticket.ErrNoRequesters))
		})

		It("fails when the dispatch cannot be sent and skips the id", func() {
			d.platform.DeleteChannel(d.ctx, d.dispatchChannel)

			_, err := d.manager.NewTicket(d.ctx, []string{"u1"}, "need help", helperRole)
			Expect(err).To(MatchError(platform.ErrNotFound))

			snapshots, err := d.manager.Snapshots(d.ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(snapshots).To(BeEmpty())
		})
	})

	Describe("removal", func() {
		var d *desk

		BeforeEach(func() {
			d = startDesk(nil)
		})

		It("closes a ticket once", func() {
			id := d.open("u1")

			removed, err := d.manager.RemoveTicket(d.ctx, id)
			Expect(err).ToNot(HaveOccurred())
			Expect(removed).To(BeTrue())

			dispatch := d.refreshed(d.dispatchOf(id))
			Expect(dispatch.Message.Description).To(ContainSubstring(ticket.ReasonRemoved))
			Expect(dispatch.Message.Disabled).To(BeTrue())
			receipt := d.refreshed(d.platform.Directs("u1")[0])
			Expect(receipt.Message.Description).To(ContainSubstring(ticket.ReasonRemoved))

			removed, err = d.manager.RemoveTicket(d.ctx, id)
			Expect(err).ToNot(HaveOccurred())
			Expect(removed).To(BeFalse())
			Expect(d.refreshed(dispatch).Edits).To(Equal(dispatch.Edits))
		})

		It("removes everything except the given ids", func() {
			for _, requester := range []string{"u1", "u2", "u3", "u4", "u5"} {
				d.open(requester)
			}
			d.manager.RemoveTicket(d.ctx, 4)

			removed, err := d.manager.RemoveAllTickets(d.ctx, []int{5})
			Expect(err).ToNot(HaveOccurred())
			Expect(removed).To(Equal([]int{1, 2, 3}))

			snapshots, _ := d.manager.Snapshots(d.ctx)
			Expect(snapshots).To(ConsistOf(HaveField("Id", 5)))
		})

		It("removes by id and reports what was open", func() {
			d.open("u1")
			d.open("u2")
			d.open("u3")

			removed, err := d.manager.RemoveTicketsByID(d.ctx, []int{1, 3, 9})
			Expect(err).ToNot(HaveOccurred())
			Expect(removed).To(Equal([]int{1, 3}))
			Expect(d.isOpen(2)).To(BeTrue())
		})

		It("refuses removal by age outside advanced mode", func() {
			d.open("u1")

			_, err := d.manager.RemoveTicketsByAge(d.ctx, 0)
			Expect(err).To(MatchError(ticket.ErrAdvancedModeRequired))
			Expect(d.isOpen(1)).To(BeTrue())
		})
	})

	Describe("removal by age", func() {
		It("closes tickets at least the given minutes old", func() {
			d := startDesk(func(s *config.DeskSettings) { s.IsAdvancedMode = true })
			old := d.open("u1")
			d.advance(30 * time.Minute)
			recent := d.open("u2")
			d.advance(15 * time.Minute)

			removed, err := d.manager.RemoveTicketsByAge(d.ctx, 40)
			Expect(err).ToNot(HaveOccurred())
			Expect(removed).To(Equal([]int{old}))
			Expect(d.isOpen(recent)).To(BeTrue())

			removed, err = d.manager.RemoveTicketsByAge(d.ctx, 15)
			Expect(err).ToNot(HaveOccurred())
			Expect(removed).To(Equal([]int{recent}))
		})
	})

	Describe("reminders", func() {
		var d *desk

		BeforeEach(func() {
			d = startDesk(withReminders(5))
		})

		It("pings the role until the ticket is accepted", func() {
			id := d.open("u1")
			Expect(d.reminders()).To(BeZero())

			d.advance(5 * time.Minute)
			Expect(d.reminders()).To(Equal(1))
			d.advance(5 * time.Minute)
			Expect(d.reminders()).To(Equal(2))

			d.accept(id, "h1")
			d.advance(15 * time.Minute)
			Expect(d.reminders()).To(Equal(2))
		})

		It("stops when the requester cancels", func() {
			d.open("u1")
			d.trigger(d.platform.Directs("u1")[0].Id, "u1", "cancel")

			d.advance(15 * time.Minute)
			Expect(d.reminders()).To(BeZero())
		})

		It("keeps pinging when the room cannot be created", func() {
			id := d.open("u1")
			d.platform.CreateChannelErr = func(spec platform.ChannelSpec) error {
				return errors.New("missing access")
			}

			d.accept(id, "h1")
			Expect(d.snapshot(id).Status).To(Equal(ticket.StatusNew))
			Expect(d.platform.Directs("h1")).To(ContainElement(
				HaveField("Message.Description", ContainSubstring("could not be created"))))

			d.advance(5 * time.Minute)
			Expect(d.reminders()).To(Equal(1))

			d.platform.CreateChannelErr = nil
			d.accept(id, "h1")
			Expect(d.snapshot(id).Status).To(Equal(ticket.StatusTaken))
		})
	})

	Describe("Stats", func() {
		It("counts tickets and averages the time to accept", func() {
			d := startDesk(nil)
			first := d.open("u1")
			d.open("u2")
			third := d.open("u3")

			d.advance(3 * time.Minute)
			d.accept(first, "h1")
			d.manager.RemoveTicket(d.ctx, third)

			stats, err := d.manager.Stats(d.ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(stats.Opened).To(Equal(3))
			Expect(stats.Closed).To(Equal(1))
			Expect(stats.New).To(Equal(1))
			Expect(stats.Taken).To(Equal(1))
			Expect(stats.AvgAcceptDuration).To(Equal(3 * time.Minute))
		})
	})

	It("rejects calls once stopped", func() {
		d := startDesk(nil)
		d.cancel()

		Eventually(func() error {
			_, err := d.manager.Stats(context.Background())
			return err
		}).Should(MatchError(ticket.ErrManagerStopped))
	})
})
