// internal/repository/repository.go
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ============================================
// Models / Entities
// ============================================

// GuildMember stores the onboarding state of one member of one guild.
// Lifecycle status is never stored as an enum; it is derived from which
// timestamps are set and how they order against JoinedAt.
type GuildMember struct {
	ID       string
	GuildID  string
	MemberID string

	// Cached display string and mention, refreshed opportunistically
	Member  string
	Mention string

	// Single-flight guard for the provisioning workflow
	OnboardingInProgress bool

	ApplicationID *string
	ChannelID     *string

	// Loaded children (nil when the reference above is nil)
	Application *Application
	Channel     *NewbieChannel

	CreatedAt time.Time
	JoinedAt  time.Time

	LeftAt                *time.Time
	PromotedAt            *time.Time
	KickedAt              *time.Time
	AutoKickedAt          *time.Time
	BannedAt              *time.Time
	StrangerRoleRemovedAt *time.Time
	FullMemberAt          *time.Time
}

// MemberEntityID builds the database key of a guild member.
func MemberEntityID(guildID, memberID string) string {
	return fmt.Sprintf("%s-%s", guildID, memberID)
}

// IsNew reports that no terminal event happened to this member yet.
func (m *GuildMember) IsNew() bool {
	return m.PromotedAt == nil &&
		m.KickedAt == nil &&
		m.AutoKickedAt == nil &&
		m.BannedAt == nil
}

// HasLeftGuild reports that a departure or removal happened after the
// most recent join.
func (m *GuildMember) HasLeftGuild() bool {
	after := func(t *time.Time) bool { return t != nil && t.After(m.JoinedAt) }
	return after(m.KickedAt) || after(m.BannedAt) || after(m.AutoKickedAt) || after(m.LeftAt)
}

func (m *GuildMember) IsInGuild() bool {
	return !m.HasLeftGuild()
}

func (m *GuildMember) IsFullMember() bool {
	return m.IsInGuild() && m.PromotedAt != nil
}

func (m *GuildMember) IsBanned() bool {
	return m.BannedAt != nil
}

// RemovedByModeration reports that the member's departure was caused by a
// kick, ban or auto-kick rather than leaving on their own.
func (m *GuildMember) RemovedByModeration() bool {
	return m.HasLeftGuild() && (m.KickedAt != nil || m.BannedAt != nil || m.AutoKickedAt != nil)
}

// Reset restores the rejoin defaults. Child references are dropped without
// deleting the child rows; an abandoned row is an accepted leak here.
func (m *GuildMember) Reset() {
	m.LeftAt = nil
	m.KickedAt = nil
	m.BannedAt = nil
	m.ApplicationID = nil
	m.ChannelID = nil
	m.Application = nil
	m.Channel = nil
}

func (m *GuildMember) String() string {
	if m.Member == "" {
		return m.ID
	}
	return m.Member
}

// Application is the interview/status-tracking record behind one status
// widget message.
type Application struct {
	ID        string
	GuildID   string
	ChannelID string
	MessageID string

	AutoKickEnabled          bool
	QuestionnaireSubmittedAt *time.Time
	CreatedAt                time.Time
}

// ApplicationEntityID builds the database key of an application, derived
// from the widget message identity.
func ApplicationEntityID(guildID, channelID, messageID string) string {
	return fmt.Sprintf("%s-%s-%s", guildID, channelID, messageID)
}

// NewbieChannel associates a member with their private interview channel.
type NewbieChannel struct {
	ID          string
	GuildID     string
	ChannelID   string
	ChannelName string
	Mention     string
	CreatedAt   time.Time
}

func ChannelEntityID(guildID, channelID string) string {
	return fmt.Sprintf("%s-%s", guildID, channelID)
}

func (c *NewbieChannel) String() string {
	return fmt.Sprintf("Channel %s (%s)", c.ChannelName, c.ChannelID)
}

// GuildProperties stores per-guild runtime counters.
type GuildProperties struct {
	ID      string
	GuildID string

	// Incrementing counter used to name interview channels
	ApplicationChannels int64
}

// ============================================
// Repository Interfaces
// ============================================

type GuildMemberRepository interface {
	FindByID(ctx context.Context, id string) (*GuildMember, error)
	FindByApplicationID(ctx context.Context, applicationID string) (*GuildMember, error)
	FindByGuild(ctx context.Context, guildID string) ([]*GuildMember, error)
	// FindStale returns members whose application predates the cutoff, still
	// has auto-kick armed, received no questionnaire and hit no terminal
	// timestamp yet.
	FindStale(ctx context.Context, guildID string, cutoff time.Time) ([]*GuildMember, error)
	Save(ctx context.Context, member *GuildMember) error
}

type ApplicationRepository interface {
	Create(ctx context.Context, app *Application) error
	Save(ctx context.Context, app *Application) error
	Delete(ctx context.Context, id string) error
}

type NewbieChannelRepository interface {
	Create(ctx context.Context, channel *NewbieChannel) error
	Delete(ctx context.Context, id string) error
}

type GuildPropertiesRepository interface {
	// FindOrCreate lazily creates the properties row on first use.
	FindOrCreate(ctx context.Context, guildID string) (*GuildProperties, error)
	// IncrementChannelCounter bumps the channel-name counter exactly once
	// per successfully created channel.
	IncrementChannelCounter(ctx context.Context, props *GuildProperties) error
}

// ============================================
// Repositories Container
// ============================================

type Repositories struct {
	Members      GuildMemberRepository
	Applications ApplicationRepository
	Channels     NewbieChannelRepository
	GuildProps   GuildPropertiesRepository
}

func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Members:      NewGuildMemberRepository(pool),
		Applications: NewApplicationRepository(pool),
		Channels:     NewNewbieChannelRepository(pool),
		GuildProps:   NewGuildPropertiesRepository(pool),
	}
}
