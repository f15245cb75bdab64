package config_test

import (
	"time"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/config"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func validDeskConfig() *config.DeskConfig {
	return &config.DeskConfig{
		DispatchChannelId: "dispatch",
		IntakeChannelId:   "intake",
		AcceptEmoji:       "🤝",
		JoinEmoji:         "🙋",
		HelperRoleId:      "mentors",
		HelperEmoji:       "🧑‍🏫",
		IsReminderEnabled: true,
		ReminderMinutes:   5,
		IsGcEnabled:       true,
		InactiveMinutes:   10,
		BufferMinutes:     5,
	}
}

var _ = Describe("DeskConfig", func() {
	Describe("Settings", func() {
		It("converts minutes to durations", func() {
			settings, err := validDeskConfig().Settings("guild", "desk")
			Expect(err).ToNot(HaveOccurred())
			Expect(settings.GuildId).To(Equal("guild"))
			Expect(settings.DeskId).To(Equal("desk"))
			Expect(settings.ReminderInterval).To(Equal(5 * time.Minute))
			Expect(settings.InactivePeriod).To(Equal(10 * time.Minute))
			Expect(settings.BufferTime).To(Equal(5 * time.Minute))
			Expect(settings.ReminderInterval).To(Equal(5 * 60000 * time.Millisecond))
		})

		It("accepts zero timers when the features are disabled", func() {
			cfg := validDeskConfig()
			cfg.IsReminderEnabled = false
			cfg.ReminderMinutes = 0
			cfg.IsGcEnabled = false
			cfg.InactiveMinutes = 0
			cfg.BufferMinutes = 0

			_, err := cfg.Settings("guild", "desk")
			Expect(err).ToNot(HaveOccurred())
		})

		DescribeTable("rejects invalid configs",
			func(mutate func(*config.DeskConfig), reason string) {
				cfg := validDeskConfig()
				mutate(cfg)

				_, err := cfg.Settings("guild", "desk")
				Expect(err).To(MatchError(config.ErrInvalidDeskConfig))
				Expect(err).To(MatchError(ContainSubstring(reason)))
			},
			Entry("missing dispatch channel", func(c *config.DeskConfig) { c.DispatchChannelId = "" }, "dispatchChannelId"),
			Entry("missing intake channel", func(c *config.DeskConfig) { c.IntakeChannelId = "" }, "intakeChannelId"),
			Entry("missing helper role", func(c *config.DeskConfig) { c.HelperRoleId = "" }, "helperRoleId"),
			Entry("reminder without interval", func(c *config.DeskConfig) { c.ReminderMinutes = 0 }, "reminder interval"),
			Entry("negative reminder interval", func(c *config.DeskConfig) { c.ReminderMinutes = -3 }, "reminder interval"),
			Entry("gc without inactive period", func(c *config.DeskConfig) { c.InactiveMinutes = 0 }, "inactive period"),
			Entry("gc without buffer time", func(c *config.DeskConfig) { c.BufferMinutes = 0 }, "buffer time"),
		)

		It("allows the same emoji for accept and join", func() {
			cfg := validDeskConfig()
			cfg.JoinEmoji = cfg.AcceptEmoji

			_, err := cfg.Settings("guild", "desk")
			Expect(err).ToNot(HaveOccurred())
		})

		It("requires guild and desk ids", func() {
			_, err := validDeskConfig().Settings("", "desk")
			Expect(err).To(MatchError(ContainSubstring("guildId")))
		})
	})

	It("builds the redis key per guild and desk", func() {
		Expect(config.DeskConfigKey("g1", "main")).To(Equal("guild:g1:desk:main"))
	})
})
