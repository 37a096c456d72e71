package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type pgNewbieChannelRepository struct {
	pool *pgxpool.Pool
}

func NewNewbieChannelRepository(pool *pgxpool.Pool) NewbieChannelRepository {
	return &pgNewbieChannelRepository{pool: pool}
}

func (r *pgNewbieChannelRepository) Create(ctx context.Context, channel *NewbieChannel) error {
	query := `
		INSERT INTO newbie_channels (id, guild_id, channel_id, channel_name, mention)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	if channel.ID == "" {
		channel.ID = ChannelEntityID(channel.GuildID, channel.ChannelID)
	}
	return r.pool.QueryRow(ctx, query,
		channel.ID, channel.GuildID, channel.ChannelID, channel.ChannelName, channel.Mention,
	).Scan(&channel.CreatedAt)
}

func (r *pgNewbieChannelRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM newbie_channels WHERE id = $1`, id)
	return err
}
