package gateway

import (
	"encoding/json"
	"fmt"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/msg"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"
)

// Interaction identifies a button press that must be acknowledged.
type Interaction struct {
	Id    string
	Token string
}

// Normalize turns one dispatch frame into a platform event. Reactions
// and button presses both become AffordanceTriggered; everything else
// the engine does not consume yields a nil event.
func Normalize(message *msg.GatewayMessage, selfId string) (platform.Event, *Interaction, error) {
	switch message.EventType {
	case msg.MessageCreateEvent:
		e := &msg.MessageCreateServerEvent{}
		if err := json.Unmarshal(message.EventData, e); err != nil {
			return nil, nil, fmt.Errorf("unmarshal message create: %w", err)
		}
		mentions := make([]string, 0, len(e.Mentions))
		for _, user := range e.Mentions {
			if !user.Bot {
				mentions = append(mentions, user.Id)
			}
		}
		return platform.MessageCreated{
			GuildId:   e.GuildId,
			ChannelId: e.ChannelId,
			MessageId: e.Id,
			AuthorId:  e.Author.Id,
			IsBot:     e.Author.Bot || e.Author.Id == selfId,
			Content:   e.Content,
			Mentions:  mentions,
		}, nil, nil

	case msg.ReactionAddEvent:
		e := &msg.ReactionAddServerEvent{}
		if err := json.Unmarshal(message.EventData, e); err != nil {
			return nil, nil, fmt.Errorf("unmarshal reaction add: %w", err)
		}
		isBot := e.UserId == selfId
		if e.Member != nil && e.Member.User != nil && e.Member.User.Bot {
			isBot = true
		}
		return platform.AffordanceTriggered{
			Kind:      platform.ReactionAffordance,
			GuildId:   e.GuildId,
			ChannelId: e.ChannelId,
			MessageId: e.MessageId,
			UserId:    e.UserId,
			IsBot:     isBot,
			Key:       EmojiKey(e.Emoji),
		}, nil, nil

	case msg.InteractionCreateEvent:
		e := &msg.InteractionCreateServerEvent{}
		if err := json.Unmarshal(message.EventData, e); err != nil {
			return nil, nil, fmt.Errorf("unmarshal interaction create: %w", err)
		}
		if e.Type != msg.ComponentInteraction {
			return nil, nil, nil
		}
		user := e.User
		if e.Member != nil && e.Member.User != nil {
			user = e.Member.User
		}
		if user == nil {
			return nil, nil, fmt.Errorf("interaction[%v] without user", e.Id)
		}
		return platform.AffordanceTriggered{
			Kind:      platform.ButtonAffordance,
			GuildId:   e.GuildId,
			ChannelId: e.ChannelId,
			MessageId: e.Message.Id,
			UserId:    user.Id,
			IsBot:     user.Bot,
			Key:       e.Data.CustomId,
		}, &Interaction{Id: e.Id, Token: e.Token}, nil

	case msg.VoiceStateUpdateEvent:
		e := &msg.VoiceStateUpdateServerEvent{}
		if err := json.Unmarshal(message.EventData, e); err != nil {
			return nil, nil, fmt.Errorf("unmarshal voice state update: %w", err)
		}
		channelId := ""
		if e.ChannelId != nil {
			channelId = *e.ChannelId
		}
		return platform.VoiceStateChanged{
			GuildId:   e.GuildId,
			ChannelId: channelId,
			UserId:    e.UserId,
		}, nil, nil
	}

	return nil, nil, nil
}

// EmojiKey is how a reaction emoji is matched against configured
// emojis: the character itself for unicode emojis, name:id for custom
// ones.
func EmojiKey(emoji msg.Emoji) string {
	if emoji.Id == "" {
		return emoji.Name
	}
	return emoji.Name + ":" + emoji.Id
}
