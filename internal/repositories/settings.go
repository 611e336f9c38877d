package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/streamtrack/backend/internal/db"
	"github.com/streamtrack/backend/internal/models"
)

// PostgresSettingsRepository provides PostgreSQL-backed persistence for
// per-user client preferences.
type PostgresSettingsRepository struct {
	pool db.Pool
}

// NewPostgresSettingsRepository constructs a settings repository backed by PostgreSQL.
func NewPostgresSettingsRepository(pool db.Pool) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{pool: pool}
}

const settingsColumns = `user_id, application_theme, application_language, default_subtitle_language,
        proxy_urls, trakt_key, enable_thumbnails, enable_autoplay, enable_skip_credits,
        source_order, enable_source_order, disabled_sources, enable_low_performance, home_section_order`

// Get returns the user's saved settings, or ErrNotFound when the user has
// never saved any.
func (r *PostgresSettingsRepository) Get(ctx context.Context, userID string) (models.UserSettings, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.UserSettings{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var settings models.UserSettings
	err = conn.QueryRow(ctx, `
        SELECT `+settingsColumns+`
        FROM user_settings
        WHERE user_id = $1
    `, userID).Scan(
		&settings.UserID, &settings.ApplicationTheme, &settings.ApplicationLanguage, &settings.DefaultSubtitleLanguage,
		&settings.ProxyURLs, &settings.TraktKey, &settings.EnableThumbnails, &settings.EnableAutoplay, &settings.EnableSkipCredits,
		&settings.SourceOrder, &settings.EnableSourceOrder, &settings.DisabledSources, &settings.EnableLowPerformance, &settings.HomeSectionOrder,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.UserSettings{}, ErrNotFound
	}
	if err != nil {
		return models.UserSettings{}, fmt.Errorf("query settings: %w", err)
	}

	return settings, nil
}

// Upsert saves the user's settings, replacing any previous row.
func (r *PostgresSettingsRepository) Upsert(ctx context.Context, settings models.UserSettings) (models.UserSettings, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.UserSettings{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO user_settings (user_id, application_theme, application_language, default_subtitle_language,
            proxy_urls, trakt_key, enable_thumbnails, enable_autoplay, enable_skip_credits,
            source_order, enable_source_order, disabled_sources, enable_low_performance, home_section_order)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        ON CONFLICT (user_id)
        DO UPDATE SET
            application_theme = EXCLUDED.application_theme,
            application_language = EXCLUDED.application_language,
            default_subtitle_language = EXCLUDED.default_subtitle_language,
            proxy_urls = EXCLUDED.proxy_urls,
            trakt_key = EXCLUDED.trakt_key,
            enable_thumbnails = EXCLUDED.enable_thumbnails,
            enable_autoplay = EXCLUDED.enable_autoplay,
            enable_skip_credits = EXCLUDED.enable_skip_credits,
            source_order = EXCLUDED.source_order,
            enable_source_order = EXCLUDED.enable_source_order,
            disabled_sources = EXCLUDED.disabled_sources,
            enable_low_performance = EXCLUDED.enable_low_performance,
            home_section_order = EXCLUDED.home_section_order
    `, settings.UserID, settings.ApplicationTheme, settings.ApplicationLanguage, settings.DefaultSubtitleLanguage,
		orEmptySlice(settings.ProxyURLs), settings.TraktKey, settings.EnableThumbnails, settings.EnableAutoplay, settings.EnableSkipCredits,
		orEmptySlice(settings.SourceOrder), settings.EnableSourceOrder, orEmptySlice(settings.DisabledSources),
		settings.EnableLowPerformance, orEmptySlice(settings.HomeSectionOrder))
	if err != nil {
		return models.UserSettings{}, fmt.Errorf("upsert settings: %w", err)
	}

	return settings, nil
}

// DeleteForUser removes the user's settings row if one exists.
func (r *PostgresSettingsRepository) DeleteForUser(ctx context.Context, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM user_settings WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete settings: %w", err)
	}
	return nil
}
