package rest

import (
	"strconv"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"
)

// Channel types on the wire.
const (
	textChannelType     = 0
	voiceChannelType    = 2
	categoryChannelType = 4
)

// Component types and button style on the wire.
const (
	actionRowComponent = 1
	buttonComponent    = 2
	primaryButton      = 1

	// A row holds at most this many buttons.
	maxButtonsPerRow = 5
)

// Permission bits on the wire.
var permissionBits = map[platform.Permission]uint64{
	platform.ViewChannel:  1 << 10,
	platform.SendMessages: 1 << 11,
	platform.AddReactions: 1 << 6,
	platform.Connect:      1 << 20,
	platform.Speak:        1 << 21,
}

func encodePermission(permission platform.Permission) string {
	var bits uint64
	for flag, bit := range permissionBits {
		if permission&flag != 0 {
			bits |= bit
		}
	}
	return strconv.FormatUint(bits, 10)
}

type overwritePayload struct {
	Id    string `json:"id"`
	Type  int    `json:"type"`
	Allow string `json:"allow"`
	Deny  string `json:"deny"`
}

func newOverwritePayload(overwrite platform.PermissionOverwrite) overwritePayload {
	overwriteType := 0
	if overwrite.Type == platform.MemberOverwrite {
		overwriteType = 1
	}
	return overwritePayload{
		Id:    overwrite.TargetId,
		Type:  overwriteType,
		Allow: encodePermission(overwrite.Allow),
		Deny:  encodePermission(overwrite.Deny),
	}
}

type channelPayload struct {
	Id                   string             `json:"id,omitempty"`
	GuildId              string             `json:"guild_id,omitempty"`
	Name                 string             `json:"name"`
	Type                 int                `json:"type"`
	ParentId             string             `json:"parent_id,omitempty"`
	PermissionOverwrites []overwritePayload `json:"permission_overwrites,omitempty"`
}

func newChannelPayload(spec platform.ChannelSpec) *channelPayload {
	payload := &channelPayload{
		Name:     spec.Name,
		Type:     encodeChannelKind(spec.Kind),
		ParentId: spec.ParentId,
	}
	for _, overwrite := range spec.Overwrites {
		payload.PermissionOverwrites = append(payload.PermissionOverwrites, newOverwritePayload(overwrite))
	}
	return payload
}

func (c *channelPayload) toChannel() *platform.Channel {
	return &platform.Channel{
		Id:       c.Id,
		GuildId:  c.GuildId,
		Name:     c.Name,
		Kind:     decodeChannelKind(c.Type),
		ParentId: c.ParentId,
	}
}

func encodeChannelKind(kind platform.ChannelKind) int {
	switch kind {
	case platform.VoiceChannel:
		return voiceChannelType
	case platform.CategoryChannel:
		return categoryChannelType
	}
	return textChannelType
}

func decodeChannelKind(channelType int) platform.ChannelKind {
	switch channelType {
	case voiceChannelType:
		return platform.VoiceChannel
	case categoryChannelType:
		return platform.CategoryChannel
	}
	return platform.TextChannel
}

type embedFieldPayload struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedPayload struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []embedFieldPayload `json:"fields,omitempty"`
}

type emojiPayload struct {
	Name string `json:"name"`
}

type componentPayload struct {
	Type       int                `json:"type"`
	Style      int                `json:"style,omitempty"`
	Label      string             `json:"label,omitempty"`
	CustomId   string             `json:"custom_id,omitempty"`
	Emoji      *emojiPayload      `json:"emoji,omitempty"`
	Disabled   bool               `json:"disabled,omitempty"`
	Components []componentPayload `json:"components,omitempty"`
}

type messagePayload struct {
	Id         string             `json:"id,omitempty"`
	Content    string             `json:"content"`
	Embeds     []embedPayload     `json:"embeds"`
	Components []componentPayload `json:"components"`
}

// newMessagePayload renders labelled affordances as buttons. Label-less
// affordances are added as reactions after the message is sent.
func newMessagePayload(message platform.Message) *messagePayload {
	payload := &messagePayload{
		Content:    message.Content,
		Embeds:     []embedPayload{},
		Components: []componentPayload{},
	}

	if message.Title != "" || message.Description != "" || len(message.Fields) > 0 {
		embed := embedPayload{
			Title:       message.Title,
			Description: message.Description,
			Color:       message.Color,
		}
		for _, field := range message.Fields {
			embed.Fields = append(embed.Fields, embedFieldPayload{Name: field.Name, Value: field.Value})
		}
		payload.Embeds = append(payload.Embeds, embed)
	}

	var row *componentPayload
	for _, affordance := range message.Affordances {
		if affordance.Label == "" {
			continue
		}
		if row == nil || len(row.Components) == maxButtonsPerRow {
			payload.Components = append(payload.Components, componentPayload{Type: actionRowComponent})
			row = &payload.Components[len(payload.Components)-1]
		}

		button := componentPayload{
			Type:     buttonComponent,
			Style:    primaryButton,
			Label:    affordance.Label,
			CustomId: affordance.Key,
			Disabled: message.Disabled,
		}
		if affordance.Emoji != "" {
			button.Emoji = &emojiPayload{Name: affordance.Emoji}
		}
		row.Components = append(row.Components, button)
	}

	return payload
}
