package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/streamtrack/backend/internal/auth"
	"github.com/streamtrack/backend/internal/db"
)

// PostgresChallengeStore persists one-time challenge codes to PostgreSQL.
type PostgresChallengeStore struct {
	pool db.Pool
}

// NewPostgresChallengeStore constructs a challenge store backed by PostgreSQL.
func NewPostgresChallengeStore(pool db.Pool) *PostgresChallengeStore {
	return &PostgresChallengeStore{pool: pool}
}

// Save persists a freshly issued challenge.
func (s *PostgresChallengeStore) Save(ctx context.Context, challenge auth.Challenge) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO challenge_codes (code, flow, key_kind, created_at, expires_at)
        VALUES ($1, $2, $3, $4, $5)
    `, challenge.Code, challenge.Flow, challenge.KeyKind, challenge.CreatedAt.UTC(), challenge.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}

	return nil
}

// Find loads a challenge by code.
func (s *PostgresChallengeStore) Find(ctx context.Context, code string) (auth.Challenge, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return auth.Challenge{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var (
		challenge  auth.Challenge
		consumedAt sql.NullTime
	)
	err = conn.QueryRow(ctx, `
        SELECT code, flow, key_kind, created_at, expires_at, consumed_at
        FROM challenge_codes
        WHERE code = $1
    `, code).Scan(&challenge.Code, &challenge.Flow, &challenge.KeyKind, &challenge.CreatedAt, &challenge.ExpiresAt, &consumedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Challenge{}, auth.ErrChallengeNotFound
		}
		return auth.Challenge{}, fmt.Errorf("select challenge: %w", err)
	}

	challenge.CreatedAt = challenge.CreatedAt.UTC()
	challenge.ExpiresAt = challenge.ExpiresAt.UTC()
	challenge.Consumed = consumedAt.Valid
	return challenge, nil
}

// Consume marks the challenge consumed. The single-statement compare-and-set
// guarantees at most one of any racing verifications wins.
func (s *PostgresChallengeStore) Consume(ctx context.Context, code string) (bool, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE challenge_codes
        SET consumed_at = NOW()
        WHERE code = $1 AND consumed_at IS NULL
    `, code)
	if err != nil {
		return false, fmt.Errorf("consume challenge: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// DeleteExpired prunes challenges past their expiry, returning the count.
func (s *PostgresChallengeStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM challenge_codes WHERE expires_at <= $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	return tag.RowsAffected(), nil
}
