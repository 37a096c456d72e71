// Package platform defines the interface surface of the external chat
// platform. The bot core only ever talks to the Client interface; the
// concrete transport lives in the rest and gateway subpackages.
package platform

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a guild, member, channel, role or message
// no longer exists on the platform side.
var ErrNotFound = errors.New("platform: entity not found")

// Member is a live guild member as reported by the platform.
type Member struct {
	ID       string   `json:"id"`
	Username string   `json:"username"`
	Bot      bool     `json:"bot"`
	Owner    bool     `json:"owner"`
	Roles    []string `json:"roles"`
}

// Mention returns the member's mention string.
func (m *Member) Mention() string {
	return fmt.Sprintf("<@%s>", m.ID)
}

// HasRole reports whether the member currently holds the given role.
func (m *Member) HasRole(roleID string) bool {
	for _, r := range m.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Channel struct {
	ID       string `json:"id"`
	GuildID  string `json:"guildId"`
	Name     string `json:"name"`
	ParentID string `json:"parentId"`
}

// Mention returns the channel's mention string.
func (c *Channel) Mention() string {
	return fmt.Sprintf("<#%s>", c.ID)
}

type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channelId"`
}

// Channel permissions used in access-control overwrites.
type Permission string

const (
	PermViewChannel        Permission = "VIEW_CHANNEL"
	PermReadMessageHistory Permission = "READ_MESSAGE_HISTORY"
	PermSendMessages       Permission = "SEND_MESSAGES"
	PermManageMessages     Permission = "MANAGE_MESSAGES"
	PermEmbedLinks         Permission = "EMBED_LINKS"
	PermAddReactions       Permission = "ADD_REACTIONS"
	PermAttachFiles        Permission = "ATTACH_FILES"
)

type OverwriteTarget string

const (
	OverwriteRole   OverwriteTarget = "role"
	OverwriteMember OverwriteTarget = "member"
)

// Overwrite is one access-control entry on a channel.
type Overwrite struct {
	Target   OverwriteTarget `json:"target"`
	TargetID string          `json:"targetId"`
	Allow    []Permission    `json:"allow,omitempty"`
	Deny     []Permission    `json:"deny,omitempty"`
}

// EveryoneRoleID returns the ID of the implicit everyone role of a guild,
// which by platform convention equals the guild ID.
func EveryoneRoleID(guildID string) string {
	return guildID
}

type CreateChannelParams struct {
	Name       string      `json:"name"`
	ParentID   string      `json:"parentId,omitempty"`
	Overwrites []Overwrite `json:"overwrites,omitempty"`
}

// Embed is a structured message panel.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Footer      string       `json:"footer,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota + 1
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

// Button is an interactive control attached to a message. CustomID is the
// activation token echoed back in interaction events.
type Button struct {
	Style    ButtonStyle `json:"style"`
	CustomID string      `json:"customId"`
	Label    string      `json:"label"`
}

// MessageParams describes message content to post or edit. Buttons are
// grouped into rows.
type MessageParams struct {
	Content string     `json:"content,omitempty"`
	Embed   *Embed     `json:"embed,omitempty"`
	Buttons [][]Button `json:"buttons,omitempty"`
}

// Interaction identifies one control activation so it can be acknowledged
// and answered.
type Interaction struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// Client is the outbound mutation surface of the chat platform.
type Client interface {
	Member(ctx context.Context, guildID, memberID string) (*Member, error)
	Members(ctx context.Context, guildID string) ([]*Member, error)
	Role(ctx context.Context, guildID, roleID string) (*Role, error)

	CreateChannel(ctx context.Context, guildID string, params CreateChannelParams) (*Channel, error)
	DeleteChannel(ctx context.Context, channelID, reason string) error
	ChannelExists(ctx context.Context, channelID string) (bool, error)

	SendMessage(ctx context.Context, channelID string, params *MessageParams) (*Message, error)
	EditMessage(ctx context.Context, channelID, messageID string, params *MessageParams) error

	GrantRole(ctx context.Context, guildID, memberID, roleID string) error
	RevokeRole(ctx context.Context, guildID, memberID, roleID string) error

	KickMember(ctx context.Context, guildID, memberID, reason string) error
	BanMember(ctx context.Context, guildID, memberID, reason string) error

	// DeferInteraction acknowledges a control activation within the
	// platform's response deadline; the actual outcome is delivered later
	// via EditInteractionResponse.
	DeferInteraction(ctx context.Context, interaction *Interaction) error
	EditInteractionResponse(ctx context.Context, interaction *Interaction, params *MessageParams) error
}
