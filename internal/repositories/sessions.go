package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/streamtrack/backend/internal/auth"
	"github.com/streamtrack/backend/internal/db"
	"github.com/streamtrack/backend/internal/models"
)

// PostgresSessionStore persists sessions to PostgreSQL.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

const sessionColumns = `id, user_id, device, user_agent, created_at, accessed_at, expires_at`

// Save stores or updates a session record.
func (s *PostgresSessionStore) Save(ctx context.Context, session models.Session) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO sessions (id, user_id, device, user_agent, created_at, accessed_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id)
        DO UPDATE SET device = EXCLUDED.device, accessed_at = EXCLUDED.accessed_at, expires_at = EXCLUDED.expires_at
    `, session.ID, session.UserID, session.Device, session.UserAgent,
		session.CreatedAt.UTC(), session.AccessedAt.UTC(), session.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// Find loads a session by its id.
func (s *PostgresSessionStore) Find(ctx context.Context, id string) (models.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.Session{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	session, err := scanSession(conn.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, auth.ErrSessionNotFound
		}
		return models.Session{}, fmt.Errorf("select session: %w", err)
	}
	return session, nil
}

// Touch advances accessed_at on the session.
func (s *PostgresSessionStore) Touch(ctx context.Context, id string, accessedAt time.Time) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `UPDATE sessions SET accessed_at = $2 WHERE id = $1`, id, accessedAt.UTC())
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

// Delete removes a session by id.
func (s *PostgresSessionStore) Delete(ctx context.Context, id string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

// ListForUser returns the user's sessions, newest first.
func (s *PostgresSessionStore) ListForUser(ctx context.Context, userID string) ([]models.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT `+sessionColumns+`
        FROM sessions
        WHERE user_id = $1
        ORDER BY created_at DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// DeleteForUser removes every session owned by the user, returning the count.
func (s *PostgresSessionStore) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete sessions for user: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes sessions past their expiry, returning the count.
func (s *PostgresSessionStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (models.Session, error) {
	var session models.Session
	if err := row.Scan(&session.ID, &session.UserID, &session.Device, &session.UserAgent,
		&session.CreatedAt, &session.AccessedAt, &session.ExpiresAt); err != nil {
		return models.Session{}, err
	}
	session.CreatedAt = session.CreatedAt.UTC()
	session.AccessedAt = session.AccessedAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, nil
}
