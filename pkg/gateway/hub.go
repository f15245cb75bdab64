package gateway

import (
	"sync"

	"hackcave/helpdesk/helpdesk-ticket-server/pkg/infra"
	"hackcave/helpdesk/helpdesk-ticket-server/pkg/platform"

	"github.com/emirpasic/gods/maps/hashmap"
	"github.com/emirpasic/gods/sets/hashset"
	"go.uber.org/zap"
)

// Hub routes normalized platform events to whoever subscribed to the
// message or channel they concern, and keeps track of who sits in which
// voice channel.
type Hub struct {
	// Inbound events from the gateway.
	Events chan platform.Event

	mu sync.Mutex

	// Key value: messageId -> []*subscription.
	affordanceSubs *hashmap.Map

	// Key value: channelId -> []*subscription.
	messageSubs *hashmap.Map

	// Key value: channelId -> set of userIds.
	voiceMembers *hashmap.Map

	// Key value: userId -> channelId.
	voiceChannelOf *hashmap.Map

	logger *zap.SugaredLogger
}

type subscription struct {
	hub *Hub

	key  string
	subs *hashmap.Map

	onAffordance func(platform.AffordanceTriggered)
	onMessage    func(platform.MessageCreated)
}

var _ platform.Events = (*Hub)(nil)

func ProvideHub(loggerFactory *infra.LoggerFactory) *Hub {
	return &Hub{
		Events:         make(chan platform.Event, 1024),
		affordanceSubs: hashmap.New(),
		messageSubs:    hashmap.New(),
		voiceMembers:   hashmap.New(),
		voiceChannelOf: hashmap.New(),
		logger:         loggerFactory.Create("Hub").Sugar(),
	}
}

func (h *Hub) Run() {
	for event := range h.Events {
		h.Publish(event)
	}
}

// Publish delivers one event synchronously.
func (h *Hub) Publish(event platform.Event) {
	switch e := event.(type) {
	case platform.AffordanceTriggered:
		h.logger.Debugf("affordance kind[%v] message[%v] user[%v] key[%v]", e.Kind, e.MessageId, e.UserId, e.Key)
		for _, sub := range h.subscribers(h.affordanceSubs, e.MessageId) {
			sub.onAffordance(e)
		}

	case platform.MessageCreated:
		h.logger.Debugf("message channel[%v] author[%v] bot[%v]", e.ChannelId, e.AuthorId, e.IsBot)
		for _, sub := range h.subscribers(h.messageSubs, e.ChannelId) {
			sub.onMessage(e)
		}

	case platform.VoiceStateChanged:
		h.logger.Debugf("voice state user[%v] channel[%v]", e.UserId, e.ChannelId)
		h.updateVoiceState(e)

	default:
		h.logger.Warnf("dropping unknown event[%T]", event)
	}
}

func (h *Hub) OnAffordance(messageId string, handler func(platform.AffordanceTriggered)) platform.Subscription {
	return h.subscribe(h.affordanceSubs, messageId, &subscription{onAffordance: handler})
}

func (h *Hub) OnChannelMessage(channelId string, handler func(platform.MessageCreated)) platform.Subscription {
	return h.subscribe(h.messageSubs, channelId, &subscription{onMessage: handler})
}

// VoiceOccupancy returns the number of users the gateway last saw in a
// voice channel.
func (h *Hub) VoiceOccupancy(channelId string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	value, ok := h.voiceMembers.Get(channelId)
	if !ok {
		return 0
	}
	return value.(*hashset.Set).Size()
}

// SubscriptionCount returns the number of live subscriptions for a
// message or channel.
func (h *Hub) SubscriptionCount(key string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := 0
	for _, subs := range []*hashmap.Map{h.affordanceSubs, h.messageSubs} {
		if value, ok := subs.Get(key); ok {
			count += len(value.([]*subscription))
		}
	}
	return count
}

func (h *Hub) subscribe(subs *hashmap.Map, key string, sub *subscription) platform.Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub.hub = h
	sub.key = key
	sub.subs = subs

	var list []*subscription
	if value, ok := subs.Get(key); ok {
		list = value.([]*subscription)
	}
	subs.Put(key, append(list, sub))
	return sub
}

func (h *Hub) subscribers(subs *hashmap.Map, key string) []*subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	value, ok := subs.Get(key)
	if !ok {
		return nil
	}
	return append([]*subscription(nil), value.([]*subscription)...)
}

// Close is idempotent. A handler is never called after Close returned,
// unless a dispatch already in flight picked it up.
func (s *subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	value, ok := s.subs.Get(s.key)
	if !ok {
		return
	}

	list := value.([]*subscription)
	remaining := make([]*subscription, 0, len(list))
	for _, other := range list {
		if other != s {
			remaining = append(remaining, other)
		}
	}
	if len(remaining) == 0 {
		s.subs.Remove(s.key)
		return
	}
	s.subs.Put(s.key, remaining)
}

func (h *Hub) updateVoiceState(e platform.VoiceStateChanged) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if value, ok := h.voiceChannelOf.Get(e.UserId); ok {
		previous := value.(string)
		if members, ok := h.voiceMembers.Get(previous); ok {
			set := members.(*hashset.Set)
			set.Remove(e.UserId)
			if set.Empty() {
				h.voiceMembers.Remove(previous)
			}
		}
		h.voiceChannelOf.Remove(e.UserId)
	}

	if e.ChannelId == "" {
		return
	}

	set := hashset.New()
	if members, ok := h.voiceMembers.Get(e.ChannelId); ok {
		set = members.(*hashset.Set)
	}
	set.Add(e.UserId)
	h.voiceMembers.Put(e.ChannelId, set)
	h.voiceChannelOf.Put(e.UserId, e.ChannelId)
}
