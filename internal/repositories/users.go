package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/streamtrack/backend/internal/auth"
	"github.com/streamtrack/backend/internal/db"
	"github.com/streamtrack/backend/internal/models"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, public_key, namespace, nickname, profile, permissions, ratings, created_at, last_logged_in`

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	profile, err := json.Marshal(user.Profile)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	permissions, err := json.Marshal(user.Permissions)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}
	ratings, err := json.Marshal(orEmptyRatings(user.Ratings))
	if err != nil {
		return fmt.Errorf("encode ratings: %w", err)
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, public_key, namespace, nickname, profile, permissions, ratings, created_at, last_logged_in)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `, user.ID, user.PublicKey, user.Namespace, user.Nickname, profile, permissions, ratings, user.CreatedAt.UTC(), user.LastLoggedIn.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return auth.ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByPublicKey fetches the user owning the given public key.
func (r *PostgresUserRepository) FindByPublicKey(ctx context.Context, publicKey string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE public_key = $1`, publicKey)
}

// FindByID fetches a user by id.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, query string, arg any) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	user, err := scanUser(conn.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, auth.ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		user        models.User
		profile     []byte
		permissions []byte
		ratings     []byte
	)
	if err := row.Scan(&user.ID, &user.PublicKey, &user.Namespace, &user.Nickname, &profile, &permissions, &ratings, &user.CreatedAt, &user.LastLoggedIn); err != nil {
		return models.User{}, err
	}
	if err := json.Unmarshal(profile, &user.Profile); err != nil {
		return models.User{}, fmt.Errorf("decode profile: %w", err)
	}
	if err := json.Unmarshal(permissions, &user.Permissions); err != nil {
		return models.User{}, fmt.Errorf("decode permissions: %w", err)
	}
	if err := json.Unmarshal(ratings, &user.Ratings); err != nil {
		return models.User{}, fmt.Errorf("decode ratings: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.LastLoggedIn = user.LastLoggedIn.UTC()
	return user, nil
}

// RecordLogin stamps last_logged_in for the user.
func (r *PostgresUserRepository) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE users SET last_logged_in = $2 WHERE id = $1`, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// UpdateProfile applies the provided profile and/or nickname changes and
// returns the updated user. Nil fields are left untouched.
func (r *PostgresUserRepository) UpdateProfile(ctx context.Context, userID string, profile *models.Profile, nickname *string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var profileJSON []byte
	if profile != nil {
		profileJSON, err = json.Marshal(profile)
		if err != nil {
			return models.User{}, fmt.Errorf("encode profile: %w", err)
		}
	}

	user, err := scanUser(conn.QueryRow(ctx, `
        UPDATE users
        SET profile = COALESCE($2, profile),
            nickname = COALESCE($3, nickname)
        WHERE id = $1
        RETURNING `+userColumns+`
    `, userID, profileJSON, nickname))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, auth.ErrUserNotFound
		}
		return models.User{}, fmt.Errorf("update user profile: %w", err)
	}
	return user, nil
}

// ReplaceRatings overwrites the user's ratings list.
func (r *PostgresUserRepository) ReplaceRatings(ctx context.Context, userID string, ratings []models.Rating) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	encoded, err := json.Marshal(orEmptyRatings(ratings))
	if err != nil {
		return fmt.Errorf("encode ratings: %w", err)
	}

	tag, err := conn.Exec(ctx, `UPDATE users SET ratings = $2 WHERE id = $1`, userID, encoded)
	if err != nil {
		return fmt.Errorf("update ratings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// Delete removes the user row itself. Owned records are removed separately by
// the account deletion cascade.
func (r *PostgresUserRepository) Delete(ctx context.Context, userID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// Count returns the number of registered users.
func (r *PostgresUserRepository) Count(ctx context.Context) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var count int64
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func orEmptyRatings(ratings []models.Rating) []models.Rating {
	if ratings == nil {
		return []models.Rating{}
	}
	return ratings
}
