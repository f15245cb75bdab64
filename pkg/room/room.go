// Package room manages a group of channels under one category that only
// a set of roles and individually granted users can see.
package room

import (
	"context"
	"errors"
	"fmt"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/sets/hashset"
	"go.uber.org/zap"
)

var (
	ErrNotInitialized     = errors.New("room is not initialized")
	ErrProtectedChannel   = errors.New("channel is protected")
	ErrUnknownChannel     = errors.New("channel does not belong to room")
	ErrInvalidChannelKind = errors.New("room channels must be text or voice")
)

const (
	memberPermissions = platform.ViewChannel | platform.SendMessages | platform.AddReactions | platform.Connect | platform.Speak
	entryPermissions  = platform.ViewChannel | platform.AddReactions
)

type Room struct {
	platform platform.Platform
	guildId  string
	name     string

	// Roles that can see the room. Users are granted access one by one
	// with GrantAccess.
	roles []string

	category     *platform.Channel
	generalText  *platform.Channel
	generalVoice *platform.Channel
	entry        *platform.Channel

	// Key value: channelId -> *platform.Channel, in creation order.
	textChannels  *linkedhashmap.Map
	voiceChannels *linkedhashmap.Map

	// Channel ids that RemoveChannel refuses to delete unless forced.
	safe *hashset.Set

	locked bool

	logger *zap.SugaredLogger
}

func New(p platform.Platform, guildId, name string, roles []string, logger *zap.SugaredLogger) *Room {
	normalized := NormalizeName(name)
	return &Room{
		platform:      p,
		guildId:       guildId,
		name:          normalized,
		roles:         append([]string(nil), roles...),
		textChannels:  linkedhashmap.New(),
		voiceChannels: linkedhashmap.New(),
		safe:          hashset.New(),
		logger:        logger.With("room", normalized),
	}
}

// Init creates the category and the general text and voice channels.
// The everyone role cannot see the category, every room role can. If a
// general channel cannot be created, whatever was created is removed
// again before the error is returned.
func (r *Room) Init(ctx context.Context) (*Room, error) {
	overwrites := []platform.PermissionOverwrite{
		{TargetId: r.guildId, Type: platform.RoleOverwrite, Deny: platform.ViewChannel},
	}
	for _, role := range r.roles {
		overwrites = append(overwrites, platform.PermissionOverwrite{
			TargetId: role,
			Type:     platform.RoleOverwrite,
			Allow:    platform.ViewChannel,
		})
	}

	category, err := r.platform.CreateChannel(ctx, r.guildId, platform.ChannelSpec{
		Name:       r.name,
		Kind:       platform.CategoryChannel,
		Overwrites: overwrites,
	})
	if err != nil {
		return nil, fmt.Errorf("create category of room[%v]: %w", r.name, err)
	}
	r.category = category

	text, err := r.AddChannel(ctx, r.name+"-text", platform.TextChannel, nil, true)
	if err != nil {
		r.teardown(ctx)
		return nil, err
	}
	r.generalText = text

	voice, err := r.AddChannel(ctx, r.name+"-voice", platform.VoiceChannel, nil, true)
	if err != nil {
		r.teardown(ctx)
		return nil, err
	}
	r.generalVoice = voice

	r.logger.Infof("initialized category[%v] text[%v] voice[%v]", category.Id, text.Id, voice.Id)
	return r, nil
}

func (r *Room) teardown(ctx context.Context) {
	if err := r.Delete(ctx); err != nil {
		r.logger.Warnf("failed to tear down partially created room, err[%v]", err)
	}
}

// AddChannel creates a channel under the category and tracks it as a
// text or voice channel. Safe channels can only be removed with force.
func (r *Room) AddChannel(ctx context.Context, name string, kind platform.ChannelKind, overwrites []platform.PermissionOverwrite, isSafe bool) (*platform.Channel, error) {
	if r.category == nil {
		return nil, ErrNotInitialized
	}
	if kind != platform.TextChannel && kind != platform.VoiceChannel {
		return nil, ErrInvalidChannelKind
	}

	channel, err := r.platform.CreateChannel(ctx, r.guildId, platform.ChannelSpec{
		Name:       NormalizeName(name),
		Kind:       kind,
		ParentId:   r.category.Id,
		Overwrites: overwrites,
	})
	if err != nil {
		return nil, fmt.Errorf("create %v channel[%v] in room[%v]: %w", kind, name, r.name, err)
	}

	r.channelsOf(kind).Put(channel.Id, channel)
	if isSafe {
		r.safe.Add(channel.Id)
	}
	r.logger.Debugf("added %v channel[%v] name[%v] safe[%v]", kind, channel.Id, channel.Name, isSafe)
	return channel, nil
}

// RemoveChannel deletes a channel of the room. A safe channel is only
// deleted when forced.
func (r *Room) RemoveChannel(ctx context.Context, channelId string, forced bool) error {
	channel, ok := r.lookup(channelId)
	if !ok {
		return fmt.Errorf("channel[%v] room[%v]: %w", channelId, r.name, ErrUnknownChannel)
	}
	if r.safe.Contains(channelId) && !forced {
		return fmt.Errorf("channel[%v] room[%v]: %w", channelId, r.name, ErrProtectedChannel)
	}

	if err := r.platform.DeleteChannel(ctx, channelId); err != nil && !errors.Is(err, platform.ErrNotFound) {
		return fmt.Errorf("delete channel[%v] of room[%v]: %w", channelId, r.name, err)
	}
	r.untrack(channel)
	return nil
}

// Lock hides the category from the room roles and gives them a single
// read-only entry channel instead. Locking a locked room does nothing.
func (r *Room) Lock(ctx context.Context) error {
	if r.category == nil {
		return ErrNotInitialized
	}
	if r.locked {
		return nil
	}

	for _, role := range r.roles {
		err := r.platform.SetPermission(ctx, r.category.Id, platform.PermissionOverwrite{
			TargetId: role,
			Type:     platform.RoleOverwrite,
			Deny:     platform.ViewChannel,
		})
		if err != nil {
			return fmt.Errorf("revoke role[%v] in room[%v]: %w", role, r.name, err)
		}
	}

	if r.entry == nil {
		overwrites := []platform.PermissionOverwrite{
			{TargetId: r.guildId, Type: platform.RoleOverwrite, Deny: platform.ViewChannel},
		}
		for _, role := range r.roles {
			overwrites = append(overwrites, platform.PermissionOverwrite{
				TargetId: role,
				Type:     platform.RoleOverwrite,
				Allow:    entryPermissions,
				Deny:     platform.SendMessages,
			})
		}
		entry, err := r.AddChannel(ctx, r.name+"-entry", platform.TextChannel, overwrites, true)
		if err != nil {
			return err
		}
		r.entry = entry
	}

	r.locked = true
	r.logger.Infof("locked, entry[%v]", r.entry.Id)
	return nil
}

// GrantAccess lets one user see the room, or only its entry channel
// while the room is locked.
func (r *Room) GrantAccess(ctx context.Context, identity string) error {
	target, allow, err := r.accessTarget()
	if err != nil {
		return err
	}
	err = r.platform.SetPermission(ctx, target, platform.PermissionOverwrite{
		TargetId: identity,
		Type:     platform.MemberOverwrite,
		Allow:    allow,
	})
	if err != nil {
		return fmt.Errorf("grant user[%v] in room[%v]: %w", identity, r.name, err)
	}
	return nil
}

func (r *Room) RevokeAccess(ctx context.Context, identity string) error {
	target, _, err := r.accessTarget()
	if err != nil {
		return err
	}
	if err := r.platform.DeletePermission(ctx, target, identity); err != nil && !errors.Is(err, platform.ErrNotFound) {
		return fmt.Errorf("revoke user[%v] in room[%v]: %w", identity, r.name, err)
	}
	return nil
}

func (r *Room) accessTarget() (string, platform.Permission, error) {
	if r.category == nil {
		return "", 0, ErrNotInitialized
	}
	if r.locked && r.entry != nil {
		return r.entry.Id, entryPermissions, nil
	}
	return r.category.Id, memberPermissions, nil
}

// Archive keeps the text history: text channels are renamed
// <room>-<channel> and moved under targetCategoryId, voice channels are
// deleted, then the category. Every step is attempted even if an
// earlier one failed.
func (r *Room) Archive(ctx context.Context, targetCategoryId string) error {
	if r.category == nil {
		return ErrNotInitialized
	}

	var errs []error
	for _, channel := range r.TextChannels() {
		_, err := r.platform.EditChannel(ctx, channel.Id, platform.ChannelEdit{
			Name:     r.name + "-" + channel.Name,
			ParentId: targetCategoryId,
		})
		if err != nil {
			r.logger.Warnf("failed to archive channel[%v], err[%v]", channel.Id, err)
			errs = append(errs, fmt.Errorf("archive channel[%v]: %w", channel.Id, err))
			continue
		}
		r.untrack(channel)
	}

	errs = append(errs, r.deleteChannels(ctx, r.VoiceChannels())...)
	errs = append(errs, r.deleteCategory(ctx)...)

	r.logger.Infof("archived into category[%v], failures[%v]", targetCategoryId, len(errs))
	return errors.Join(errs...)
}

// Delete removes every channel of the room, children before the
// category. Failures are logged and do not stop the remaining
// deletions; they are returned joined once everything was attempted.
func (r *Room) Delete(ctx context.Context) error {
	if r.category == nil {
		return nil
	}

	var errs []error
	errs = append(errs, r.deleteChannels(ctx, r.TextChannels())...)
	errs = append(errs, r.deleteChannels(ctx, r.VoiceChannels())...)
	errs = append(errs, r.deleteCategory(ctx)...)

	r.logger.Infof("deleted, failures[%v]", len(errs))
	return errors.Join(errs...)
}

func (r *Room) deleteChannels(ctx context.Context, channels []platform.Channel) []error {
	var errs []error
	for _, channel := range channels {
		err := r.platform.DeleteChannel(ctx, channel.Id)
		if err != nil && !errors.Is(err, platform.ErrNotFound) {
			r.logger.Warnf("failed to delete channel[%v], err[%v]", channel.Id, err)
			errs = append(errs, fmt.Errorf("delete channel[%v]: %w", channel.Id, err))
			continue
		}
		r.untrack(channel)
	}
	return errs
}

func (r *Room) deleteCategory(ctx context.Context) []error {
	err := r.platform.DeleteChannel(ctx, r.category.Id)
	if err != nil && !errors.Is(err, platform.ErrNotFound) {
		r.logger.Warnf("failed to delete category[%v], err[%v]", r.category.Id, err)
		return []error{fmt.Errorf("delete category[%v]: %w", r.category.Id, err)}
	}
	r.category = nil
	r.locked = false
	return nil
}

func (r *Room) channelsOf(kind platform.ChannelKind) *linkedhashmap.Map {
	if kind == platform.VoiceChannel {
		return r.voiceChannels
	}
	return r.textChannels
}

func (r *Room) lookup(channelId string) (platform.Channel, bool) {
	for _, channels := range []*linkedhashmap.Map{r.textChannels, r.voiceChannels} {
		if value, ok := channels.Get(channelId); ok {
			return *value.(*platform.Channel), true
		}
	}
	return platform.Channel{}, false
}

func (r *Room) untrack(channel platform.Channel) {
	r.channelsOf(channel.Kind).Remove(channel.Id)
	r.safe.Remove(channel.Id)

	switch {
	case r.generalText != nil && r.generalText.Id == channel.Id:
		r.generalText = nil
	case r.generalVoice != nil && r.generalVoice.Id == channel.Id:
		r.generalVoice = nil
	case r.entry != nil && r.entry.Id == channel.Id:
		r.entry = nil
	}
}

func (r *Room) Name() string {
	return r.name
}

// Category returns nil before Init and after the room was deleted or
// archived.
func (r *Room) Category() *platform.Channel {
	return r.category
}

func (r *Room) GeneralText() *platform.Channel {
	return r.generalText
}

func (r *Room) GeneralVoice() *platform.Channel {
	return r.generalVoice
}

func (r *Room) Entry() *platform.Channel {
	return r.entry
}

func (r *Room) TextChannels() []platform.Channel {
	return values(r.textChannels)
}

func (r *Room) VoiceChannels() []platform.Channel {
	return values(r.voiceChannels)
}

func (r *Room) IsLocked() bool {
	return r.locked
}

func (r *Room) IsSafe(channelId string) bool {
	return r.safe.Contains(channelId)
}

func values(channels *linkedhashmap.Map) []platform.Channel {
	result := make([]platform.Channel, 0, channels.Size())
	it := channels.Iterator()
	for it.Begin(); it.Next(); {
		result = append(result, *it.Value().(*platform.Channel))
	}
	return result
}
