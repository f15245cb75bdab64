package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/infra"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var (
	ErrDeskNotConfigured = errors.New("desk is not configured")
	ErrInvalidDeskConfig = errors.New("invalid desk config")
)

// DeskConfig is the raw per-desk configuration as stored in redis. It
// is never handed to the ticket engine directly, see Settings.
type DeskConfig struct {
	// Channel where helpers receive ticket dispatch messages.
	DispatchChannelId string `redis:"dispatchChannelId"`

	// Channel holding the intake console where requesters open tickets.
	IntakeChannelId string `redis:"intakeChannelId"`

	// Affordance a helper uses to accept a new ticket.
	AcceptEmoji string `redis:"acceptEmoji"`

	// Affordance a helper uses to join a ticket someone already took.
	JoinEmoji string `redis:"joinEmoji"`

	// The main helper role. The intake console always offers a
	// "general" ticket type bound to it.
	HelperRoleId string `redis:"helperRoleId"`
	HelperEmoji  string `redis:"helperEmoji"`

	// Re-ping the requested role every ReminderMinutes while a ticket
	// waits for a helper.
	IsReminderEnabled bool `redis:"isReminderEnabled"`
	ReminderMinutes   int  `redis:"reminderMinutes"`

	// Close tickets whose room stays idle for InactiveMinutes and
	// nobody confirms within BufferMinutes.
	IsGcEnabled     bool `redis:"isGcEnabled"`
	InactiveMinutes int  `redis:"inactiveMinutes"`
	BufferMinutes   int  `redis:"bufferMinutes"`

	IsAdvancedMode bool `redis:"isAdvancedMode"`
}

// DeskSettings is the validated, immutable form of DeskConfig. Durations
// are already converted from minutes.
type DeskSettings struct {
	GuildId string
	DeskId  string

	DispatchChannelId string
	IntakeChannelId   string

	AcceptEmoji string
	JoinEmoji   string

	HelperRoleId string
	HelperEmoji  string

	IsReminderEnabled bool
	ReminderInterval  time.Duration

	IsGcEnabled    bool
	InactivePeriod time.Duration
	BufferTime     time.Duration

	IsAdvancedMode bool
}

// Settings converts the stored config into DeskSettings and rejects
// combinations that would only fail once a timer fires.
func (c *DeskConfig) Settings(guildId, deskId string) (DeskSettings, error) {
	settings := DeskSettings{
		GuildId:           guildId,
		DeskId:            deskId,
		DispatchChannelId: c.DispatchChannelId,
		IntakeChannelId:   c.IntakeChannelId,
		AcceptEmoji:       c.AcceptEmoji,
		JoinEmoji:         c.JoinEmoji,
		HelperRoleId:      c.HelperRoleId,
		HelperEmoji:       c.HelperEmoji,
		IsReminderEnabled: c.IsReminderEnabled,
		ReminderInterval:  minutes(c.ReminderMinutes),
		IsGcEnabled:       c.IsGcEnabled,
		InactivePeriod:    minutes(c.InactiveMinutes),
		BufferTime:        minutes(c.BufferMinutes),
		IsAdvancedMode:    c.IsAdvancedMode,
	}
	if err := settings.Validate(); err != nil {
		return DeskSettings{}, err
	}
	return settings, nil
}

func (s DeskSettings) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"guildId", s.GuildId},
		{"deskId", s.DeskId},
		{"dispatchChannelId", s.DispatchChannelId},
		{"intakeChannelId", s.IntakeChannelId},
		{"acceptEmoji", s.AcceptEmoji},
		{"joinEmoji", s.JoinEmoji},
		{"helperRoleId", s.HelperRoleId},
		{"helperEmoji", s.HelperEmoji},
	}
	for _, field := range required {
		if field.value == "" {
			return fmt.Errorf("%w: %v is missing", ErrInvalidDeskConfig, field.name)
		}
	}

	if s.IsReminderEnabled && s.ReminderInterval <= 0 {
		return fmt.Errorf("%w: reminders enabled with reminder interval[%v]", ErrInvalidDeskConfig, s.ReminderInterval)
	}

	if s.IsGcEnabled {
		if s.InactivePeriod <= 0 {
			return fmt.Errorf("%w: gc enabled with inactive period[%v]", ErrInvalidDeskConfig, s.InactivePeriod)
		}
		if s.BufferTime <= 0 {
			return fmt.Errorf("%w: gc enabled with buffer time[%v]", ErrInvalidDeskConfig, s.BufferTime)
		}
	}

	return nil
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// DeskConfigStore reads desk configuration from redis. The ticket
// engine never writes to it.
type DeskConfigStore struct {
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

func ProvideDeskConfigStore(redisClient *redis.Client, loggerFactory *infra.LoggerFactory) *DeskConfigStore {
	return &DeskConfigStore{
		redisClient: redisClient,
		logger:      loggerFactory.Create("DeskConfigStore").Sugar(),
	}
}

func DeskConfigKey(guildId, deskId string) string {
	return fmt.Sprintf("guild:%v:desk:%v", guildId, deskId)
}

func (s *DeskConfigStore) Load(ctx context.Context, guildId, deskId string) (DeskSettings, error) {
	key := DeskConfigKey(guildId, deskId)

	result := s.redisClient.HGetAll(ctx, key)
	values, err := result.Result()
	if err != nil {
		return DeskSettings{}, fmt.Errorf("read desk config key[%v]: %w", key, err)
	}
	if len(values) == 0 {
		return DeskSettings{}, fmt.Errorf("%w: key[%v]", ErrDeskNotConfigured, key)
	}

	cfg := &DeskConfig{}
	if err := result.Scan(cfg); err != nil {
		return DeskSettings{}, fmt.Errorf("scan desk config key[%v]: %w", key, err)
	}
	s.logger.Infof("loaded desk config key[%v] config[%+v]", key, cfg)

	return cfg.Settings(guildId, deskId)
}
