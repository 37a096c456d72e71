package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgGuildMemberRepository struct {
	pool *pgxpool.Pool
}

func NewGuildMemberRepository(pool *pgxpool.Pool) GuildMemberRepository {
	return &pgGuildMemberRepository{pool: pool}
}

const memberSelect = `
	SELECT m.id, m.guild_id, m.member_id, m.member_name, m.mention,
	       m.onboarding_in_progress, m.application_id, m.channel_id,
	       m.created_at, m.joined_at, m.left_at, m.promoted_at, m.kicked_at,
	       m.auto_kicked_at, m.banned_at, m.stranger_role_removed_at, m.full_member_at,
	       a.id, a.guild_id, a.channel_id, a.message_id,
	       a.auto_kick_enabled, a.questionnaire_submitted_at, a.created_at,
	       c.id, c.guild_id, c.channel_id, c.channel_name, c.mention, c.created_at
	FROM guild_members m
	LEFT JOIN applications a ON a.id = m.application_id
	LEFT JOIN newbie_channels c ON c.id = m.channel_id
`

func scanMember(row pgx.Row) (*GuildMember, error) {
	m := &GuildMember{}

	var (
		appID, appGuildID, appChannelID, appMessageID *string
		appAutoKick                                   *bool
		appSubmittedAt, appCreatedAt                  *time.Time

		chID, chGuildID, chChannelID, chName, chMention *string
		chCreatedAt                                     *time.Time
	)

	err := row.Scan(
		&m.ID, &m.GuildID, &m.MemberID, &m.Member, &m.Mention,
		&m.OnboardingInProgress, &m.ApplicationID, &m.ChannelID,
		&m.CreatedAt, &m.JoinedAt, &m.LeftAt, &m.PromotedAt, &m.KickedAt,
		&m.AutoKickedAt, &m.BannedAt, &m.StrangerRoleRemovedAt, &m.FullMemberAt,
		&appID, &appGuildID, &appChannelID, &appMessageID,
		&appAutoKick, &appSubmittedAt, &appCreatedAt,
		&chID, &chGuildID, &chChannelID, &chName, &chMention, &chCreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if appID != nil {
		m.Application = &Application{
			ID:                       *appID,
			GuildID:                  *appGuildID,
			ChannelID:                *appChannelID,
			MessageID:                *appMessageID,
			AutoKickEnabled:          *appAutoKick,
			QuestionnaireSubmittedAt: appSubmittedAt,
			CreatedAt:                *appCreatedAt,
		}
	}
	if chID != nil {
		m.Channel = &NewbieChannel{
			ID:          *chID,
			GuildID:     *chGuildID,
			ChannelID:   *chChannelID,
			ChannelName: *chName,
			Mention:     *chMention,
			CreatedAt:   *chCreatedAt,
		}
	}

	return m, nil
}

func (r *pgGuildMemberRepository) FindByID(ctx context.Context, id string) (*GuildMember, error) {
	member, err := scanMember(r.pool.QueryRow(ctx, memberSelect+` WHERE m.id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (r *pgGuildMemberRepository) FindByApplicationID(ctx context.Context, applicationID string) (*GuildMember, error) {
	member, err := scanMember(r.pool.QueryRow(ctx, memberSelect+` WHERE m.application_id = $1`, applicationID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}

func (r *pgGuildMemberRepository) FindByGuild(ctx context.Context, guildID string) ([]*GuildMember, error) {
	rows, err := r.pool.Query(ctx, memberSelect+` WHERE m.guild_id = $1 ORDER BY m.joined_at`, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*GuildMember
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (r *pgGuildMemberRepository) FindStale(ctx context.Context, guildID string, cutoff time.Time) ([]*GuildMember, error) {
	query := memberSelect + `
		WHERE m.guild_id = $1
		  AND a.created_at < $2
		  AND a.auto_kick_enabled = TRUE
		  AND a.questionnaire_submitted_at IS NULL
		  AND m.promoted_at IS NULL
		  AND m.stranger_role_removed_at IS NULL
		  AND m.full_member_at IS NULL
		  AND m.auto_kicked_at IS NULL
	`
	rows, err := r.pool.Query(ctx, query, guildID, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*GuildMember
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (r *pgGuildMemberRepository) Save(ctx context.Context, member *GuildMember) error {
	query := `
		INSERT INTO guild_members (
			id, guild_id, member_id, member_name, mention,
			onboarding_in_progress, application_id, channel_id,
			joined_at, left_at, promoted_at, kicked_at, auto_kicked_at,
			banned_at, stranger_role_removed_at, full_member_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			member_name = EXCLUDED.member_name,
			mention = EXCLUDED.mention,
			onboarding_in_progress = EXCLUDED.onboarding_in_progress,
			application_id = EXCLUDED.application_id,
			channel_id = EXCLUDED.channel_id,
			joined_at = EXCLUDED.joined_at,
			left_at = EXCLUDED.left_at,
			promoted_at = EXCLUDED.promoted_at,
			kicked_at = EXCLUDED.kicked_at,
			auto_kicked_at = EXCLUDED.auto_kicked_at,
			banned_at = EXCLUDED.banned_at,
			stranger_role_removed_at = EXCLUDED.stranger_role_removed_at,
			full_member_at = EXCLUDED.full_member_at
		RETURNING created_at
	`
	if member.ID == "" {
		member.ID = MemberEntityID(member.GuildID, member.MemberID)
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}
	return r.pool.QueryRow(ctx, query,
		member.ID, member.GuildID, member.MemberID, member.Member, member.Mention,
		member.OnboardingInProgress, member.ApplicationID, member.ChannelID,
		member.JoinedAt, member.LeftAt, member.PromotedAt, member.KickedAt, member.AutoKickedAt,
		member.BannedAt, member.StrangerRoleRemovedAt, member.FullMemberAt,
	).Scan(&member.CreatedAt)
}
