package platform

import "context"

// Lifecycle events delivered by the gateway. Every event carries the guild
// it originated from; role sets are delivered as before/after snapshots.

type MemberJoinedEvent struct {
	GuildID string  `json:"guildId"`
	Member  *Member `json:"member"`
}

type MemberUpdatedEvent struct {
	GuildID     string   `json:"guildId"`
	Member      *Member  `json:"member"`
	RolesBefore []string `json:"rolesBefore"`
	RolesAfter  []string `json:"rolesAfter"`
}

type MemberRemovedEvent struct {
	GuildID string  `json:"guildId"`
	Member  *Member `json:"member"`
}

// InteractionEvent fires when someone activates a message control. CustomID
// carries the activation token minted when the control was rendered.
type InteractionEvent struct {
	Interaction

	GuildID   string  `json:"guildId"`
	ChannelID string  `json:"channelId"`
	MessageID string  `json:"messageId"`
	CustomID  string  `json:"customId"`
	User      *Member `json:"user"`
}

type MessageCreatedEvent struct {
	GuildID   string  `json:"guildId"`
	ChannelID string  `json:"channelId"`
	MessageID string  `json:"messageId"`
	Content   string  `json:"content"`
	Author    *Member `json:"author"`
}

// EventHandler receives gateway events. Implementations must not panic and
// must not block for long; slow work belongs on the internal queue.
type EventHandler interface {
	HandleMemberJoined(ctx context.Context, e *MemberJoinedEvent)
	HandleMemberUpdated(ctx context.Context, e *MemberUpdatedEvent)
	HandleMemberRemoved(ctx context.Context, e *MemberRemovedEvent)
	HandleInteractionCreated(ctx context.Context, e *InteractionEvent)
	HandleMessageCreated(ctx context.Context, e *MessageCreatedEvent)
}
