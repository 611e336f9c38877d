package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/streamtrack/backend/internal/db"
	"github.com/streamtrack/backend/internal/models"
)

// PostgresListRepository provides PostgreSQL-backed persistence for
// user-curated lists and their items.
type PostgresListRepository struct {
	pool db.Pool
}

// NewPostgresListRepository constructs a list repository backed by PostgreSQL.
func NewPostgresListRepository(pool db.Pool) *PostgresListRepository {
	return &PostgresListRepository{pool: pool}
}

// Create inserts a new empty list.
func (r *PostgresListRepository) Create(ctx context.Context, list models.List) (models.List, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.List{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO lists (id, user_id, name, description, public)
        VALUES ($1, $2, $3, $4, $5)
    `, list.ID, list.UserID, list.Name, list.Description, list.Public)
	if err != nil {
		if isUniqueViolation(err) {
			return models.List{}, ErrConflict
		}
		return models.List{}, fmt.Errorf("insert list: %w", err)
	}

	list.Items = []models.ListItem{}
	return list, nil
}

// ListForUser returns the user's lists without their items, newest first.
func (r *PostgresListRepository) ListForUser(ctx context.Context, userID string) ([]models.List, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, name, description, public
        FROM lists
        WHERE user_id = $1
        ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query lists: %w", err)
	}
	defer rows.Close()

	var lists []models.List
	for rows.Next() {
		var list models.List
		if err := rows.Scan(&list.ID, &list.UserID, &list.Name, &list.Description, &list.Public); err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lists: %w", err)
	}

	return lists, nil
}

// FindByID returns the list with its items, or ErrNotFound.
func (r *PostgresListRepository) FindByID(ctx context.Context, listID string) (models.List, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.List{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var list models.List
	err = conn.QueryRow(ctx, `
        SELECT id, user_id, name, description, public
        FROM lists
        WHERE id = $1
    `, listID).Scan(&list.ID, &list.UserID, &list.Name, &list.Description, &list.Public)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.List{}, ErrNotFound
	}
	if err != nil {
		return models.List{}, fmt.Errorf("query list: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT id, tmdb_id, media_type
        FROM list_items
        WHERE list_id = $1
        ORDER BY added_at
    `, listID)
	if err != nil {
		return models.List{}, fmt.Errorf("query list items: %w", err)
	}
	defer rows.Close()

	list.Items = []models.ListItem{}
	for rows.Next() {
		var item models.ListItem
		if err := rows.Scan(&item.ID, &item.TmdbID, &item.Type); err != nil {
			return models.List{}, fmt.Errorf("scan list item: %w", err)
		}
		list.Items = append(list.Items, item)
	}
	if err := rows.Err(); err != nil {
		return models.List{}, fmt.Errorf("iterate list items: %w", err)
	}

	return list, nil
}

// UpdateMeta changes a list's name, description and visibility. Nil fields
// are left unchanged.
func (r *PostgresListRepository) UpdateMeta(ctx context.Context, listID string, name, description *string, public *bool) (models.List, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.List{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var list models.List
	err = conn.QueryRow(ctx, `
        UPDATE lists
        SET name = COALESCE($2, name),
            description = COALESCE($3, description),
            public = COALESCE($4, public)
        WHERE id = $1
        RETURNING id, user_id, name, description, public
    `, listID, name, description, public).
		Scan(&list.ID, &list.UserID, &list.Name, &list.Description, &list.Public)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.List{}, ErrNotFound
	}
	if err != nil {
		return models.List{}, fmt.Errorf("update list: %w", err)
	}

	return list, nil
}

// AddItems appends the items to the list, skipping titles it already holds.
func (r *PostgresListRepository) AddItems(ctx context.Context, listID string, items []models.ListItem) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	for _, item := range items {
		_, err := conn.Exec(ctx, `
            INSERT INTO list_items (id, list_id, tmdb_id, media_type)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (list_id, tmdb_id, media_type) DO NOTHING
        `, item.ID, listID, item.TmdbID, item.Type)
		if err != nil {
			return fmt.Errorf("insert list item: %w", err)
		}
	}
	return nil
}

// RemoveItems removes the items with the given ids from the list, returning
// how many were removed.
func (r *PostgresListRepository) RemoveItems(ctx context.Context, listID string, itemIDs []string) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM list_items WHERE list_id = $1 AND id = ANY($2)`, listID, itemIDs)
	if err != nil {
		return 0, fmt.Errorf("delete list items: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes the list and its items.
func (r *PostgresListRepository) Delete(ctx context.Context, listID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM list_items WHERE list_id = $1`, listID); err != nil {
		return fmt.Errorf("delete list items: %w", err)
	}

	tag, err := conn.Exec(ctx, `DELETE FROM lists WHERE id = $1`, listID)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteForUser removes every list owned by the user along with their items.
func (r *PostgresListRepository) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        DELETE FROM list_items
        WHERE list_id IN (SELECT id FROM lists WHERE user_id = $1)
    `, userID); err != nil {
		return 0, fmt.Errorf("delete list items for user: %w", err)
	}

	tag, err := conn.Exec(ctx, `DELETE FROM lists WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete lists for user: %w", err)
	}
	return tag.RowsAffected(), nil
}
