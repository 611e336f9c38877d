package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/streamtrack/backend/internal/db"
	"github.com/streamtrack/backend/internal/models"
)

// PostgresWatchHistoryRepository provides PostgreSQL-backed persistence for
// watch events.
type PostgresWatchHistoryRepository struct {
	pool db.Pool
}

// NewPostgresWatchHistoryRepository constructs a watch history repository backed by PostgreSQL.
func NewPostgresWatchHistoryRepository(pool db.Pool) *PostgresWatchHistoryRepository {
	return &PostgresWatchHistoryRepository{pool: pool}
}

const watchHistoryColumns = `id, user_id, tmdb_id, season_id, episode_id, season_number, episode_number, duration, watched, watched_at, completed, meta, updated_at`

// Upsert inserts the event or updates the row with the same
// (user, title, season, episode) key.
func (r *PostgresWatchHistoryRepository) Upsert(ctx context.Context, item models.WatchHistoryItem) (models.WatchHistoryItem, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.WatchHistoryItem{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	meta, err := json.Marshal(item.Meta)
	if err != nil {
		return models.WatchHistoryItem{}, fmt.Errorf("encode meta: %w", err)
	}

	err = conn.QueryRow(ctx, `
        INSERT INTO watch_history (id, user_id, tmdb_id, season_id, episode_id, season_number, episode_number, duration, watched, watched_at, completed, meta, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        ON CONFLICT (user_id, tmdb_id, season_id, episode_id)
        DO UPDATE SET
            season_number = EXCLUDED.season_number,
            episode_number = EXCLUDED.episode_number,
            duration = EXCLUDED.duration,
            watched = EXCLUDED.watched,
            watched_at = EXCLUDED.watched_at,
            completed = EXCLUDED.completed,
            meta = EXCLUDED.meta,
            updated_at = EXCLUDED.updated_at
        RETURNING id, updated_at
    `, item.ID, item.UserID, item.TmdbID, encodeIdentity(item.SeasonID), encodeIdentity(item.EpisodeID),
		item.SeasonNumber, item.EpisodeNumber, item.Duration, item.Watched,
		item.WatchedAt.UTC(), item.Completed, meta, item.UpdatedAt.UTC()).
		Scan(&item.ID, &item.UpdatedAt)
	if err != nil {
		return models.WatchHistoryItem{}, fmt.Errorf("upsert watch history item: %w", err)
	}

	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}

// ListForUser returns the user's watch events, most recently watched first.
func (r *PostgresWatchHistoryRepository) ListForUser(ctx context.Context, userID string) ([]models.WatchHistoryItem, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+watchHistoryColumns+`
        FROM watch_history
        WHERE user_id = $1
        ORDER BY watched_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query watch history: %w", err)
	}
	defer rows.Close()

	var items []models.WatchHistoryItem
	for rows.Next() {
		item, err := scanWatchHistoryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan watch history item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watch history: %w", err)
	}

	return items, nil
}

// Delete removes the events for one title, optionally narrowed to a season
// and/or episode, returning the count removed.
func (r *PostgresWatchHistoryRepository) Delete(ctx context.Context, userID, tmdbID string, seasonID, episodeID *string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	query := `DELETE FROM watch_history WHERE user_id = $1 AND tmdb_id = $2`
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
		return 0, fmt.Errorf("delete watch history: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteForUser removes every watch event owned by the user.
func (r *PostgresWatchHistoryRepository) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM watch_history WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete watch history for user: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanWatchHistoryItem(row pgx.Row) (models.WatchHistoryItem, error) {
	var (
		item      models.WatchHistoryItem
		seasonID  string
		episodeID string
		meta      []byte
	)
	if err := row.Scan(&item.ID, &item.UserID, &item.TmdbID, &seasonID, &episodeID,
		&item.SeasonNumber, &item.EpisodeNumber, &item.Duration, &item.Watched,
		&item.WatchedAt, &item.Completed, &meta, &item.UpdatedAt); err != nil {
		return models.WatchHistoryItem{}, err
	}
	if err := json.Unmarshal(meta, &item.Meta); err != nil {
		return models.WatchHistoryItem{}, fmt.Errorf("decode meta: %w", err)
	}
	item.SeasonID = decodeIdentity(seasonID)
	item.EpisodeID = decodeIdentity(episodeID)
	item.WatchedAt = item.WatchedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, nil
}
