package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/streamtrack/backend/internal/db"
	"github.com/streamtrack/backend/internal/models"
)

// PostgresBookmarkRepository provides PostgreSQL-backed persistence for
// bookmarks and the user's bookmark group ordering.
type PostgresBookmarkRepository struct {
	pool db.Pool
}

// NewPostgresBookmarkRepository constructs a bookmark repository backed by PostgreSQL.
func NewPostgresBookmarkRepository(pool db.Pool) *PostgresBookmarkRepository {
	return &PostgresBookmarkRepository{pool: pool}
}

// Upsert inserts the bookmark or replaces the existing one for the same title.
func (r *PostgresBookmarkRepository) Upsert(ctx context.Context, bookmark models.Bookmark) (models.Bookmark, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Bookmark{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	meta, err := json.Marshal(bookmark.Meta)
	if err != nil {
		return models.Bookmark{}, fmt.Errorf("encode meta: %w", err)
	}

	err = conn.QueryRow(ctx, `
        INSERT INTO bookmarks (user_id, tmdb_id, meta, groups, favorite_episodes, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (user_id, tmdb_id)
        DO UPDATE SET
            meta = EXCLUDED.meta,
            groups = EXCLUDED.groups,
            favorite_episodes = EXCLUDED.favorite_episodes,
            updated_at = EXCLUDED.updated_at
        RETURNING updated_at
    `, bookmark.UserID, bookmark.TmdbID, meta,
		orEmptySlice(bookmark.Groups), orEmptySlice(bookmark.FavoriteEpisodes), bookmark.UpdatedAt.UTC()).
		Scan(&bookmark.UpdatedAt)
	if err != nil {
		return models.Bookmark{}, fmt.Errorf("upsert bookmark: %w", err)
	}

	bookmark.UpdatedAt = bookmark.UpdatedAt.UTC()
	return bookmark, nil
}

// ListForUser returns all of the user's bookmarks, most recent first.
func (r *PostgresBookmarkRepository) ListForUser(ctx context.Context, userID string) ([]models.Bookmark, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT user_id, tmdb_id, meta, groups, favorite_episodes, updated_at
        FROM bookmarks
        WHERE user_id = $1
        ORDER BY updated_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []models.Bookmark
	for rows.Next() {
		bookmark, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, bookmark)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookmarks: %w", err)
	}

	return bookmarks, nil
}

// Delete removes the bookmark for one title. Missing rows are not an error.
func (r *PostgresBookmarkRepository) Delete(ctx context.Context, userID, tmdbID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM bookmarks WHERE user_id = $1 AND tmdb_id = $2`, userID, tmdbID); err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	return nil
}

// DeleteForUser removes every bookmark owned by the user along with their
// group ordering row.
func (r *PostgresBookmarkRepository) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM user_group_order WHERE user_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("delete group order: %w", err)
	}

	tag, err := conn.Exec(ctx, `DELETE FROM bookmarks WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete bookmarks for user: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GroupOrder returns the user's saved bookmark group ordering, or an empty
// slice when none has been saved yet.
func (r *PostgresBookmarkRepository) GroupOrder(ctx context.Context, userID string) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var order []string
	err = conn.QueryRow(ctx, `SELECT group_order FROM user_group_order WHERE user_id = $1`, userID).Scan(&order)
	if errors.Is(err, pgx.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query group order: %w", err)
	}
	return order, nil
}

// SetGroupOrder saves or replaces the user's bookmark group ordering.
func (r *PostgresBookmarkRepository) SetGroupOrder(ctx context.Context, userID string, order []string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO user_group_order (user_id, group_order, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (user_id)
        DO UPDATE SET group_order = EXCLUDED.group_order, updated_at = NOW()
    `, userID, orEmptySlice(order))
	if err != nil {
		return fmt.Errorf("upsert group order: %w", err)
	}
	return nil
}

func scanBookmark(row pgx.Row) (models.Bookmark, error) {
	var (
		bookmark models.Bookmark
		meta     []byte
	)
	if err := row.Scan(&bookmark.UserID, &bookmark.TmdbID, &meta,
		&bookmark.Groups, &bookmark.FavoriteEpisodes, &bookmark.UpdatedAt); err != nil {
		return models.Bookmark{}, err
	}
	if err := json.Unmarshal(meta, &bookmark.Meta); err != nil {
		return models.Bookmark{}, fmt.Errorf("decode meta: %w", err)
	}
	bookmark.UpdatedAt = bookmark.UpdatedAt.UTC()
	return bookmark, nil
}

func orEmptySlice(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
