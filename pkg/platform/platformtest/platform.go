// Package platformtest provides an in-memory platform.Platform for
// tests. It enforces the constraints a real platform has (a category
// cannot be deleted while it still has children) and records every call
// so tests can assert on it.
package platformtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"
)

type MessageRecord struct {
	Id        string
	ChannelId string
	Message   platform.Message
	Edits     int
	Deleted   bool
}

type Platform struct {
	mu sync.Mutex

	nextId int

	channels   map[string]*platform.Channel
	overwrites map[string]map[string]platform.PermissionOverwrite
	messages   map[string]*MessageRecord
	sent       []*MessageRecord
	deleted    []string

	voiceOccupancy map[string]int
	roleMembers    map[string]int

	// CreateChannelErr, when set, is consulted before every channel
	// creation; a non-nil result fails the call.
	CreateChannelErr func(spec platform.ChannelSpec) error

	// DeleteChannelErr works like CreateChannelErr for deletions.
	DeleteChannelErr func(channel platform.Channel) error

	// SendMessageErr is consulted before every channel message.
	SendMessageErr func(channelId string, message platform.Message) error

	// SetPermissionErr is consulted before every permission overwrite.
	SetPermissionErr func(channelId string, overwrite platform.PermissionOverwrite) error
}

var _ platform.Platform = (*Platform)(nil)

func New() *Platform {
	return &Platform{
		channels:       map[string]*platform.Channel{},
		overwrites:     map[string]map[string]platform.PermissionOverwrite{},
		messages:       map[string]*MessageRecord{},
		voiceOccupancy: map[string]int{},
		roleMembers:    map[string]int{},
	}
}

func (p *Platform) id(prefix string) string {
	p.nextId++
	return fmt.Sprintf("%v%v", prefix, p.nextId)
}

func (p *Platform) CreateChannel(ctx context.Context, guildId string, spec platform.ChannelSpec) (*platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.CreateChannelErr != nil {
		if err := p.CreateChannelErr(spec); err != nil {
			return nil, err
		}
	}
	if spec.ParentId != "" {
		parent, ok := p.channels[spec.ParentId]
		if !ok || parent.Kind != platform.CategoryChannel {
			return nil, fmt.Errorf("parent[%v]: %w", spec.ParentId, platform.ErrNotFound)
		}
	}

	channel := &platform.Channel{
		Id:       p.id("c"),
		GuildId:  guildId,
		Name:     spec.Name,
		Kind:     spec.Kind,
		ParentId: spec.ParentId,
	}
	p.channels[channel.Id] = channel
	p.overwrites[channel.Id] = map[string]platform.PermissionOverwrite{}
	for _, overwrite := range spec.Overwrites {
		p.overwrites[channel.Id][overwrite.TargetId] = overwrite
	}

	copied := *channel
	return &copied, nil
}

func (p *Platform) EditChannel(ctx context.Context, channelId string, edit platform.ChannelEdit) (*platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	channel, ok := p.channels[channelId]
	if !ok {
		return nil, fmt.Errorf("channel[%v]: %w", channelId, platform.ErrNotFound)
	}
	if edit.Name != "" {
		channel.Name = edit.Name
	}
	if edit.ParentId != "" {
		if _, ok := p.channels[edit.ParentId]; !ok {
			return nil, fmt.Errorf("parent[%v]: %w", edit.ParentId, platform.ErrNotFound)
		}
		channel.ParentId = edit.ParentId
	}

	copied := *channel
	return &copied, nil
}

func (p *Platform) DeleteChannel(ctx context.Context, channelId string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	channel, ok := p.channels[channelId]
	if !ok {
		return fmt.Errorf("channel[%v]: %w", channelId, platform.ErrNotFound)
	}
	if p.DeleteChannelErr != nil {
		if err := p.DeleteChannelErr(*channel); err != nil {
			return err
		}
	}
	for _, other := range p.channels {
		if other.ParentId == channelId {
			return fmt.Errorf("category[%v] still has child[%v]", channelId, other.Id)
		}
	}

	delete(p.channels, channelId)
	delete(p.overwrites, channelId)
	p.deleted = append(p.deleted, channelId)
	return nil
}

func (p *Platform) SetPermission(ctx context.Context, channelId string, overwrite platform.PermissionOverwrite) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.channels[channelId]; !ok {
		return fmt.Errorf("channel[%v]: %w", channelId, platform.ErrNotFound)
	}
	if p.SetPermissionErr != nil {
		if err := p.SetPermissionErr(channelId, overwrite); err != nil {
			return err
		}
	}
	p.overwrites[channelId][overwrite.TargetId] = overwrite
	return nil
}

func (p *Platform) DeletePermission(ctx context.Context, channelId, targetId string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.channels[channelId]; !ok {
		return fmt.Errorf("channel[%v]: %w", channelId, platform.ErrNotFound)
	}
	delete(p.overwrites[channelId], targetId)
	return nil
}

func (p *Platform) SendMessage(ctx context.Context, channelId string, message platform.Message) (*platform.SentMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.channels[channelId]; !ok && !strings.HasPrefix(channelId, "dm:") {
		return nil, fmt.Errorf("channel[%v]: %w", channelId, platform.ErrNotFound)
	}
	if p.SendMessageErr != nil {
		if err := p.SendMessageErr(channelId, message); err != nil {
			return nil, err
		}
	}
	return p.recordLocked(channelId, message), nil
}

func (p *Platform) recordLocked(channelId string, message platform.Message) *platform.SentMessage {
	record := &MessageRecord{
		Id:        p.id("m"),
		ChannelId: channelId,
		Message:   message,
	}
	p.messages[record.Id] = record
	p.sent = append(p.sent, record)
	return &platform.SentMessage{Id: record.Id, ChannelId: channelId}
}

func (p *Platform) EditMessage(ctx context.Context, channelId, messageId string, message platform.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := p.messages[messageId]
	if !ok || record.Deleted || record.ChannelId != channelId {
		return fmt.Errorf("message[%v]: %w", messageId, platform.ErrNotFound)
	}
	record.Message = message
	record.Edits++
	return nil
}

func (p *Platform) DeleteMessage(ctx context.Context, channelId, messageId string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := p.messages[messageId]
	if !ok || record.Deleted {
		return fmt.Errorf("message[%v]: %w", messageId, platform.ErrNotFound)
	}
	record.Deleted = true
	return nil
}

func (p *Platform) SendDirect(ctx context.Context, userId string, message platform.Message) (*platform.SentMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.recordLocked(DirectChannel(userId), message), nil
}

func (p *Platform) VoiceOccupancy(ctx context.Context, guildId, channelId string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.channels[channelId]; !ok {
		return 0, fmt.Errorf("channel[%v]: %w", channelId, platform.ErrNotFound)
	}
	return p.voiceOccupancy[channelId], nil
}

func (p *Platform) RoleMemberCount(ctx context.Context, guildId, roleId string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.roleMembers[roleId], nil
}

// DirectChannel is the pseudo channel id under which direct messages to
// a user are recorded.
func DirectChannel(userId string) string {
	return "dm:" + userId
}

func (p *Platform) SetVoiceOccupancy(channelId string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.voiceOccupancy[channelId] = count
}

func (p *Platform) SetRoleMembers(roleId string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roleMembers[roleId] = count
}

// AddChannel creates a channel outside of any code under test, e.g. a
// dispatch channel or an archive category.
func (p *Platform) AddChannel(guildId, name string, kind platform.ChannelKind) string {
	channel, _ := p.CreateChannel(context.Background(), guildId, platform.ChannelSpec{Name: name, Kind: kind})
	return channel.Id
}

func (p *Platform) Channel(channelId string) (platform.Channel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	channel, ok := p.channels[channelId]
	if !ok {
		return platform.Channel{}, false
	}
	return *channel, true
}

func (p *Platform) ChannelByName(name string) (platform.Channel, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, channel := range p.channels {
		if channel.Name == name {
			return *channel, true
		}
	}
	return platform.Channel{}, false
}

func (p *Platform) Children(parentId string) []platform.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()

	var children []platform.Channel
	for _, channel := range p.channels {
		if channel.ParentId == parentId {
			children = append(children, *channel)
		}
	}
	return children
}

func (p *Platform) ChannelCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.channels)
}

// DeletedChannels returns ids of deleted channels in deletion order.
func (p *Platform) DeletedChannels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deleted...)
}

func (p *Platform) Overwrite(channelId, targetId string) (platform.PermissionOverwrite, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	overwrite, ok := p.overwrites[channelId][targetId]
	return overwrite, ok
}

// CanView reports whether an overwrite explicitly lets the target see
// the channel.
func (p *Platform) CanView(channelId, targetId string) bool {
	overwrite, ok := p.Overwrite(channelId, targetId)
	return ok && overwrite.Allow&platform.ViewChannel != 0
}

func (p *Platform) Message(messageId string) (MessageRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	record, ok := p.messages[messageId]
	if !ok {
		return MessageRecord{}, false
	}
	return *record, true
}

// MessagesIn returns every message sent to a channel, deleted ones
// included, in send order.
func (p *Platform) MessagesIn(channelId string) []MessageRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	var records []MessageRecord
	for _, record := range p.sent {
		if record.ChannelId == channelId {
			records = append(records, *record)
		}
	}
	return records
}

func (p *Platform) LastMessageIn(channelId string) (MessageRecord, bool) {
	records := p.MessagesIn(channelId)
	if len(records) == 0 {
		return MessageRecord{}, false
	}
	return records[len(records)-1], true
}

func (p *Platform) Directs(userId string) []MessageRecord {
	return p.MessagesIn(DirectChannel(userId))
}
