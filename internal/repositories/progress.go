package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/streamtrack/backend/internal/db"
	"github.com/streamtrack/backend/internal/models"
)

// identitySentinel stands in for "not applicable" season/episode ids so the
// composite unique constraint stays well-defined for movies. The value is
// non-printable and can never collide with a real identifier. It exists only
// at this storage boundary; domain models use nil.
const identitySentinel = "\n"

func encodeIdentity(id *string) string {
	if id == nil {
		return identitySentinel
	}
	return *id
}

func decodeIdentity(value string) *string {
	if value == identitySentinel {
		return nil
	}
	return &value
}

// PostgresProgressRepository provides PostgreSQL-backed persistence for
// playback progress.
type PostgresProgressRepository struct {
	pool db.Pool
}

// NewPostgresProgressRepository constructs a progress repository backed by PostgreSQL.
func NewPostgresProgressRepository(pool db.Pool) *PostgresProgressRepository {
	return &PostgresProgressRepository{pool: pool}
}

const progressColumns = `id, user_id, tmdb_id, season_id, episode_id, season_number, episode_number, duration, watched, meta, updated_at`

// Upsert inserts the item or, when the (user, title, season, episode) key
// already exists, updates the matching row in a single statement. The
// returned item carries the persisted row id.
func (r *PostgresProgressRepository) Upsert(ctx context.Context, item models.ProgressItem) (models.ProgressItem, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ProgressItem{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	meta, err := json.Marshal(item.Meta)
	if err != nil {
		return models.ProgressItem{}, fmt.Errorf("encode meta: %w", err)
	}

	err = conn.QueryRow(ctx, `
        INSERT INTO progress_items (id, user_id, tmdb_id, season_id, episode_id, season_number, episode_number, duration, watched, meta, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (user_id, tmdb_id, season_id, episode_id)
        DO UPDATE SET
            season_number = EXCLUDED.season_number,
            episode_number = EXCLUDED.episode_number,
            duration = EXCLUDED.duration,
            watched = EXCLUDED.watched,
            meta = EXCLUDED.meta,
            updated_at = EXCLUDED.updated_at
        RETURNING id, updated_at
    `, item.ID, item.UserID, item.TmdbID, encodeIdentity(item.SeasonID), encodeIdentity(item.EpisodeID),
		item.SeasonNumber, item.EpisodeNumber, item.Duration, item.Watched, meta, item.UpdatedAt.UTC()).
		Scan(&item.ID, &item.UpdatedAt)
	if err != nil {
		return models.ProgressItem{}, fmt.Errorf("upsert progress item: %w", err)
	}

	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}

// ListForUser returns all of the user's progress rows, most recent first.
func (r *PostgresProgressRepository) ListForUser(ctx context.Context, userID string) ([]models.ProgressItem, error) {
	return r.list(ctx, `
        SELECT `+progressColumns+`
        FROM progress_items
        WHERE user_id = $1
        ORDER BY updated_at DESC
    `, userID)
}

// ListSeasonSiblings returns the persisted episodes of one season of a title,
// excluding the given episode id.
func (r *PostgresProgressRepository) ListSeasonSiblings(ctx context.Context, userID, tmdbID, seasonID string, excludeEpisodeID *string) ([]models.ProgressItem, error) {
	return r.list(ctx, `
        SELECT `+progressColumns+`
        FROM progress_items
        WHERE user_id = $1 AND tmdb_id = $2 AND season_id = $3 AND episode_id <> $4
    `, userID, tmdbID, seasonID, encodeIdentity(excludeEpisodeID))
}

func (r *PostgresProgressRepository) list(ctx context.Context, query string, args ...any) ([]models.ProgressItem, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query progress items: %w", err)
	}
	defer rows.Close()

	var items []models.ProgressItem
	for rows.Next() {
		item, err := scanProgressItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress items: %w", err)
	}

	return items, nil
}

// Delete removes the rows for one title, optionally narrowed to a season
// and/or episode, returning the count removed.
func (r *PostgresProgressRepository) Delete(ctx context.Context, userID, tmdbID string, seasonID, episodeID *string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	query := `DELETE FROM progress_items WHERE user_id = $1 AND tmdb_id = $2`
	args := []any{userID, tmdbID}
	if seasonID != nil {
		args = append(args, *seasonID)
		query += fmt.Sprintf(` AND season_id = $%d`, len(args))
	}
	if episodeID != nil {
		args = append(args, *episodeID)
		query += fmt.Sprintf(` AND episode_id = $%d`, len(args))
	}

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete progress items: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteByIDs removes the user's rows with the given ids, returning the count.
func (r *PostgresProgressRepository) DeleteByIDs(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM progress_items WHERE user_id = $1 AND id = ANY($2)`, userID, ids)
	if err != nil {
		return 0, fmt.Errorf("delete progress items by id: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteForUser removes every progress row owned by the user.
func (r *PostgresProgressRepository) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM progress_items WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete progress for user: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanProgressItem(row pgx.Row) (models.ProgressItem, error) {
	var (
		item      models.ProgressItem
		seasonID  string
		episodeID string
		meta      []byte
	)
	if err := row.Scan(&item.ID, &item.UserID, &item.TmdbID, &seasonID, &episodeID,
		&item.SeasonNumber, &item.EpisodeNumber, &item.Duration, &item.Watched, &meta, &item.UpdatedAt); err != nil {
		return models.ProgressItem{}, err
	}
	if err := json.Unmarshal(meta, &item.Meta); err != nil {
		return models.ProgressItem{}, fmt.Errorf("decode meta: %w", err)
	}
	item.SeasonID = decodeIdentity(seasonID)
	item.EpisodeID = decodeIdentity(episodeID)
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}
