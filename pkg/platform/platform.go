// Package platform describes what the ticket engine needs from the chat
// platform: channels with per-identity visibility, messages carrying
// affordances, direct messages, and a few membership queries. The engine
// only ever talks to the Platform and Events interfaces.
package platform

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("platform resource not found")
)

type ChannelKind int

const (
	TextChannel ChannelKind = iota
	VoiceChannel
	CategoryChannel
)

func (k ChannelKind) String() string {
	switch k {
	case TextChannel:
		return "text"
	case VoiceChannel:
		return "voice"
	case CategoryChannel:
		return "category"
	}
	return "unknown"
}

type Channel struct {
	Id       string
	GuildId  string
	Name     string
	Kind     ChannelKind
	ParentId string
}

type OverwriteType int

const (
	RoleOverwrite OverwriteType = iota
	MemberOverwrite
)

// Permission is a bit set of channel permissions.
type Permission uint64

const (
	ViewChannel Permission = 1 << iota
	SendMessages
	AddReactions
	Connect
	Speak
)

// PermissionOverwrite allows or denies permissions for one role or
// member on one channel.
type PermissionOverwrite struct {
	TargetId string
	Type     OverwriteType
	Allow    Permission
	Deny     Permission
}

type ChannelSpec struct {
	Name       string
	Kind       ChannelKind
	ParentId   string
	Overwrites []PermissionOverwrite
}

// ChannelEdit changes the fields that are set. Empty strings leave the
// field untouched.
type ChannelEdit struct {
	Name     string
	ParentId string
}

// Affordance is something a user can trigger on a message. Platforms
// render it as a button when it has a label and as a reaction
// otherwise; the engine does not care which.
type Affordance struct {
	// Key identifies the affordance in AffordanceTriggered events. For
	// reactions it is the emoji.
	Key   string
	Label string
	Emoji string
}

type Field struct {
	Name  string
	Value string
}

type Message struct {
	// Plain content, used for mentions.
	Content string

	Title       string
	Description string
	Color       int
	Fields      []Field

	Affordances []Affordance

	// Disabled greys out button affordances. Reactions cannot be
	// disabled and are simply no longer listened to.
	Disabled bool
}

type SentMessage struct {
	Id        string
	ChannelId string
}

type Platform interface {
	CreateChannel(ctx context.Context, guildId string, spec ChannelSpec) (*Channel, error)
	EditChannel(ctx context.Context, channelId string, edit ChannelEdit) (*Channel, error)
	DeleteChannel(ctx context.Context, channelId string) error

	SetPermission(ctx context.Context, channelId string, overwrite PermissionOverwrite) error
	DeletePermission(ctx context.Context, channelId, targetId string) error

	SendMessage(ctx context.Context, channelId string, message Message) (*SentMessage, error)
	EditMessage(ctx context.Context, channelId, messageId string, message Message) error
	DeleteMessage(ctx context.Context, channelId, messageId string) error

	// SendDirect delivers a private message to one user.
	SendDirect(ctx context.Context, userId string, message Message) (*SentMessage, error)

	// VoiceOccupancy returns how many identities are connected to a
	// voice channel right now.
	VoiceOccupancy(ctx context.Context, guildId, channelId string) (int, error)

	// RoleMemberCount returns how many members currently hold a role.
	RoleMemberCount(ctx context.Context, guildId, roleId string) (int, error)
}

// Events delivers normalized platform events to subscribers. Handlers
// are called on the dispatching goroutine and must not block.
type Events interface {
	OnAffordance(messageId string, handler func(AffordanceTriggered)) Subscription
	OnChannelMessage(channelId string, handler func(MessageCreated)) Subscription
}

type Subscription interface {
	Close()
}
