package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/forgeline/porter/internal/db"
	"github.com/forgeline/porter/internal/platform"
	"github.com/forgeline/porter/internal/repository"
)

// Status widget colors by member state.
const (
	colorBlue     = 0x3498DB // freshly joined, no terminal event
	colorDarkGray = 0x607D8B // departed
	colorRed      = 0xE74C3C // banned
	colorGreen    = 0x2ECC71 // full member
	colorNone     = 0
)

const widgetFooter = "Onboarding by Porter"

// widgetColor classifies the member state; first match wins.
func widgetColor(m *repository.GuildMember) int {
	if m.IsNew() {
		return colorBlue
	}
	if m.HasLeftGuild() {
		return colorDarkGray
	}
	if m.IsBanned() {
		return colorRed
	}
	if m.IsFullMember() {
		return colorGreen
	}
	return colorNone
}

// timestamp renders a platform timestamp markup token. Deterministic for a
// fixed time value, which keeps re-renders byte-identical.
func timestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:f>", t.Unix())
}

// memberControls builds the moderation row for the member record itself.
func memberControls(m *repository.GuildMember) []platform.Button {
	return []platform.Button{
		{
			Style:    platform.ButtonSecondary,
			CustomID: ControlToken(CategoryStrangers, m.ID, ActionKick),
			Label:    "Kick",
		},
		{
			Style:    platform.ButtonDanger,
			CustomID: ControlToken(CategoryStrangers, m.ID, ActionBan),
			Label:    "Ban",
		},
	}
}

// applicationControls builds the row owned by the application. Promote and
// Disable auto-kick appear independently of each other.
func applicationControls(app *repository.Application) []platform.Button {
	var buttons []platform.Button
	if app.QuestionnaireSubmittedAt != nil {
		buttons = append(buttons, platform.Button{
			Style:    platform.ButtonSuccess,
			CustomID: ControlToken(CategoryStrangers, app.ID, ActionPromote),
			Label:    "Promote",
		})
	}
	if app.AutoKickEnabled {
		buttons = append(buttons, platform.Button{
			Style:    platform.ButtonSecondary,
			CustomID: ControlToken(CategoryStrangers, app.ID, ActionDisableAutoKick),
			Label:    "Disable auto-kick",
		})
	}
	return buttons
}

// BuildStatusWidget projects a member record into the moderator-facing
// status panel. Pure: identical input yields identical output, and it
// works from the record's cached display fields only.
//
// withApplicationControls is dropped when the widget is being rendered one
// last time before its application is deleted.
func BuildStatusWidget(m *repository.GuildMember, withApplicationControls bool) *platform.MessageParams {
	embed := &platform.Embed{
		Title:       fmt.Sprintf("Stranger %s", m),
		Description: "Stranger status panel",
		Color:       widgetColor(m),
		Footer:      widgetFooter,
	}

	embed.Fields = append(embed.Fields,
		platform.EmbedField{Name: "Member", Value: m.Mention},
		platform.EmbedField{Name: "Database ID", Value: m.ID},
		platform.EmbedField{Name: "Created at", Value: timestamp(m.CreatedAt)},
		platform.EmbedField{Name: "Joined at", Value: timestamp(m.JoinedAt), Inline: true},
	)

	if m.Channel != nil {
		embed.Fields = append(embed.Fields, platform.EmbedField{Name: "Newbie channel", Value: m.Channel.Mention})
	}
	if m.PromotedAt != nil {
		embed.Fields = append(embed.Fields, platform.EmbedField{Name: "Promoted at", Value: timestamp(*m.PromotedAt)})
	}
	if m.KickedAt != nil {
		embed.Fields = append(embed.Fields, platform.EmbedField{Name: "Kicked at", Value: timestamp(*m.KickedAt)})
	}
	if m.AutoKickedAt != nil {
		embed.Fields = append(embed.Fields, platform.EmbedField{Name: "Auto-Kicked at", Value: timestamp(*m.AutoKickedAt)})
	}
	if m.BannedAt != nil {
		embed.Fields = append(embed.Fields, platform.EmbedField{Name: "Banned at", Value: timestamp(*m.BannedAt)})
	}
	if m.HasLeftGuild() && m.LeftAt != nil {
		if m.RemovedByModeration() {
			embed.Fields = append(embed.Fields,
				platform.EmbedField{Name: "Removed by moderation action at", Value: timestamp(*m.LeftAt)})
		} else {
			embed.Fields = append(embed.Fields, platform.EmbedField{Name: "Left at", Value: timestamp(*m.LeftAt)})
		}
	}

	params := &platform.MessageParams{Embed: embed}

	if !m.HasLeftGuild() {
		params.Buttons = append(params.Buttons, memberControls(m))
	}
	if withApplicationControls && m.Application != nil {
		if row := applicationControls(m.Application); len(row) > 0 {
			params.Buttons = append(params.Buttons, row)
		}
	}

	return params
}

// WidgetService owns the external life of status widgets: posting,
// updating and tearing down the rendered message plus its application row.
type WidgetService struct {
	platform platform.Client
	repos    *repository.Repositories
	cache    *db.RedisDB
}

func NewWidgetService(client platform.Client, repos *repository.Repositories, cache *db.RedisDB) *WidgetService {
	return &WidgetService{platform: client, repos: repos, cache: cache}
}

// RefreshIdentity opportunistically refreshes the cached display fields
// from the live roster. Lookup failures leave the cache untouched.
func (s *WidgetService) RefreshIdentity(ctx context.Context, m *repository.GuildMember) {
	live, err := s.platform.Member(ctx, m.GuildID, m.MemberID)
	if err != nil || live == nil {
		return
	}
	m.Member = live.Username
	m.Mention = live.Mention()
}

// CreateStatusWidget posts the initial widget into the status channel,
// persists the application row keyed to the message identity and links it
// to the member. The message is posted first (to obtain its identity) and
// then edited to carry the controls, whose tokens embed the application ID.
func (s *WidgetService) CreateStatusWidget(ctx context.Context, statusChannelID string, m *repository.GuildMember) error {
	s.RefreshIdentity(ctx, m)

	initial := BuildStatusWidget(m, false)

	msg, err := s.platform.SendMessage(ctx, statusChannelID, initial)
	if err != nil {
		return fmt.Errorf("failed to post status widget: %w", err)
	}

	app := &repository.Application{
		GuildID:         m.GuildID,
		ChannelID:       statusChannelID,
		MessageID:       msg.ID,
		AutoKickEnabled: true,
	}
	if err := s.repos.Applications.Create(ctx, app); err != nil {
		return fmt.Errorf("failed to persist application: %w", err)
	}

	m.Application = app
	m.ApplicationID = &app.ID
	if err := s.repos.Members.Save(ctx, m); err != nil {
		return fmt.Errorf("failed to link application: %w", err)
	}

	full := BuildStatusWidget(m, true)
	if err := s.platform.EditMessage(ctx, statusChannelID, msg.ID, full); err != nil {
		log.Printf("[Widget] Failed to attach controls to widget %s: %v", msg.ID, err)
		return nil
	}
	s.cache.RememberWidget(ctx, msg.ID, db.RenderHash(full))

	return nil
}

// UpdateStatusWidget re-renders the widget message. Safe to call after the
// message was deleted externally: not-found is suppressed and the widget
// treated as already gone. Unchanged renders skip the edit call when the
// render cache is available.
func (s *WidgetService) UpdateStatusWidget(ctx context.Context, m *repository.GuildMember, withApplicationControls bool) error {
	if m.Application == nil {
		return ErrNoApplication
	}

	s.RefreshIdentity(ctx, m)

	params := BuildStatusWidget(m, withApplicationControls)

	hash := db.RenderHash(params)
	if s.cache.WidgetUnchanged(ctx, m.Application.MessageID, hash) {
		return nil
	}

	err := s.platform.EditMessage(ctx, m.Application.ChannelID, m.Application.MessageID, params)
	if errors.Is(err, platform.ErrNotFound) {
		log.Printf("[Widget] Status message %s already gone", m.Application.MessageID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to update status widget: %w", err)
	}
	s.cache.RememberWidget(ctx, m.Application.MessageID, hash)
	return nil
}

// DeleteStatusWidget renders the widget one final time without its
// application controls, then deletes the application row and clears the
// member's reference. Child first, parent reference second.
func (s *WidgetService) DeleteStatusWidget(ctx context.Context, m *repository.GuildMember) error {
	if m.Application == nil {
		return nil
	}

	if err := s.UpdateStatusWidget(ctx, m, false); err != nil {
		log.Printf("[Widget] Final widget update for %s failed: %v", m, err)
	}

	messageID := m.Application.MessageID
	if err := s.repos.Applications.Delete(ctx, m.Application.ID); err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}

	m.Application = nil
	m.ApplicationID = nil
	if err := s.repos.Members.Save(ctx, m); err != nil {
		return fmt.Errorf("failed to clear application reference: %w", err)
	}

	s.cache.ForgetWidget(ctx, messageID)
	return nil
}
