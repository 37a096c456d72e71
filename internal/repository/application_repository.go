package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type pgApplicationRepository struct {
	pool *pgxpool.Pool
}

func NewApplicationRepository(pool *pgxpool.Pool) ApplicationRepository {
	return &pgApplicationRepository{pool: pool}
}

func (r *pgApplicationRepository) Create(ctx context.Context, app *Application) error {
	query := `
		INSERT INTO applications (id, guild_id, channel_id, message_id, auto_kick_enabled, questionnaire_submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	if app.ID == "" {
		app.ID = ApplicationEntityID(app.GuildID, app.ChannelID, app.MessageID)
	}
	return r.pool.QueryRow(ctx, query,
		app.ID, app.GuildID, app.ChannelID, app.MessageID, app.AutoKickEnabled, app.QuestionnaireSubmittedAt,
	).Scan(&app.CreatedAt)
}

func (r *pgApplicationRepository) Save(ctx context.Context, app *Application) error {
	query := `
		UPDATE applications
		SET auto_kick_enabled = $2, questionnaire_submitted_at = $3
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, app.ID, app.AutoKickEnabled, app.QuestionnaireSubmittedAt)
	return err
}

func (r *pgApplicationRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	return err
}
