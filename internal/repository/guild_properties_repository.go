package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgGuildPropertiesRepository struct {
	pool *pgxpool.Pool
}

func NewGuildPropertiesRepository(pool *pgxpool.Pool) GuildPropertiesRepository {
	return &pgGuildPropertiesRepository{pool: pool}
}

func (r *pgGuildPropertiesRepository) FindOrCreate(ctx context.Context, guildID string) (*GuildProperties, error) {
	props := &GuildProperties{}
	query := `
		SELECT id, guild_id, application_channels
		FROM guild_properties WHERE guild_id = $1
	`
	err := r.pool.QueryRow(ctx, query, guildID).Scan(&props.ID, &props.GuildID, &props.ApplicationChannels)
	if err == nil {
		return props, nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}

	props.ID = guildID
	props.GuildID = guildID
	props.ApplicationChannels = 1
	insert := `
		INSERT INTO guild_properties (id, guild_id, application_channels)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, insert, props.ID, props.GuildID, props.ApplicationChannels); err != nil {
		return nil, err
	}
	return props, nil
}

func (r *pgGuildPropertiesRepository) IncrementChannelCounter(ctx context.Context, props *GuildProperties) error {
	query := `
		UPDATE guild_properties SET application_channels = application_channels + 1
		WHERE id = $1
		RETURNING application_channels
	`
	return r.pool.QueryRow(ctx, query, props.ID).Scan(&props.ApplicationChannels)
}
