package msg

type OpCode uint

const (
	DispatchCode       OpCode = 0
	HeartbeatCode      OpCode = 1
	IdentifyCode       OpCode = 2
	ReconnectCode      OpCode = 7
	InvalidSessionCode OpCode = 9
	HelloCode          OpCode = 10
	HeartbeatAckCode   OpCode = 11
)

type EventType string

const (
	ReadyEvent             EventType = "READY"
	MessageCreateEvent     EventType = "MESSAGE_CREATE"
	ReactionAddEvent       EventType = "MESSAGE_REACTION_ADD"
	InteractionCreateEvent EventType = "INTERACTION_CREATE"
	VoiceStateUpdateEvent  EventType = "VOICE_STATE_UPDATE"
)

// Gateway intents the bot subscribes to.
const (
	GuildsIntent                = 1 << 0
	GuildVoiceStatesIntent      = 1 << 7
	GuildMessagesIntent         = 1 << 9
	GuildMessageReactionsIntent = 1 << 10
	DirectMessagesIntent        = 1 << 12
	DirectMessageReactions      = 1 << 13
	MessageContentIntent        = 1 << 15
)

// Interaction types and callback types used by button presses.
const (
	ComponentInteraction   = 3
	DeferredUpdateCallback = 6
)

type User struct {
	Id  string `json:"id"`
	Bot bool   `json:"bot"`
}

type Member struct {
	User  *User    `json:"user,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

type Emoji struct {
	Id   string `json:"id,omitempty"`
	Name string `json:"name"`
}

type HelloServerEvent struct {
	HeartbeatIntervalMsec int64 `json:"heartbeat_interval"`
}

type IdentifyClientEvent struct {
	Token   string `json:"token"`
	Intents int    `json:"intents"`
}

type ReadyServerEvent struct {
	User      User   `json:"user"`
	SessionId string `json:"session_id"`
}

type MessageCreateServerEvent struct {
	Id        string `json:"id"`
	ChannelId string `json:"channel_id"`
	GuildId   string `json:"guild_id"`
	Author    User   `json:"author"`
	Content   string `json:"content"`
	Mentions  []User `json:"mentions"`
}

type ReactionAddServerEvent struct {
	UserId    string  `json:"user_id"`
	ChannelId string  `json:"channel_id"`
	MessageId string  `json:"message_id"`
	GuildId   string  `json:"guild_id"`
	Member    *Member `json:"member,omitempty"`
	Emoji     Emoji   `json:"emoji"`
}

type InteractionCreateServerEvent struct {
	Id        string  `json:"id"`
	Token     string  `json:"token"`
	Type      int     `json:"type"`
	GuildId   string  `json:"guild_id"`
	ChannelId string  `json:"channel_id"`
	Member    *Member `json:"member,omitempty"`
	User      *User   `json:"user,omitempty"`
	Message   struct {
		Id string `json:"id"`
	} `json:"message"`
	Data struct {
		CustomId string `json:"custom_id"`
	} `json:"data"`
}

type VoiceStateUpdateServerEvent struct {
	GuildId   string  `json:"guild_id"`
	ChannelId *string `json:"channel_id"`
	UserId    string  `json:"user_id"`
}
