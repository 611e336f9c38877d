package auth

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/streamtrack/backend/internal/models"
)

const (
	deviceMaxLength = 500

	tokenKeyInfo = "streamtrack session token v1"
)

var (
	// ErrSessionNotFound indicates the token does not map to a stored session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session is past its expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrTokenInvalid indicates the presented token is malformed or tampered with.
	ErrTokenInvalid = errors.New("session token invalid")
	// ErrDeviceInvalid indicates the device label is empty or too long.
	ErrDeviceInvalid = errors.New("device label must be between 1 and 500 characters")
)

// SessionStore persists sessions. Touch updates accessed_at only.
type SessionStore interface {
	Save(ctx context.Context, session models.Session) error
	Find(ctx context.Context, id string) (models.Session, error)
	Touch(ctx context.Context, id string, accessedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// SessionManager creates, looks up, and expires sessions, and mints the
// signed tokens clients present on subsequent requests.
type SessionManager struct {
	ttl   time.Duration
	key   []byte
	store SessionStore

	// NowFunc overrides the clock for tests.
	NowFunc func() time.Time
}

// NewSessionManager constructs a manager issuing sessions with the given TTL.
// The token signing key is derived from secret with HKDF-SHA256 so the raw
// configuration value never signs anything directly.
func NewSessionManager(secret string, ttl time.Duration, store SessionStore) (*SessionManager, error) {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	if secret == "" {
		return nil, errors.New("auth: session secret must not be empty")
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(tokenKeyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive token key: %w", err)
	}

	return &SessionManager{ttl: ttl, key: key, store: store}, nil
}

// ValidateDevice checks the device label length bounds.
func ValidateDevice(device string) error {
	if device == "" || len(device) > deviceMaxLength {
		return ErrDeviceInvalid
	}
	return nil
}

// Create persists a new session for the user bound to the given device.
func (m *SessionManager) Create(ctx context.Context, userID, device, userAgent string) (models.Session, error) {
	if userID == "" {
		return models.Session{}, errors.New("user id must be provided")
	}
	if err := ValidateDevice(device); err != nil {
		return models.Session{}, err
	}

	now := m.now()
	session := models.Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		Device:     device,
		UserAgent:  userAgent,
		CreatedAt:  now,
		AccessedAt: now,
		ExpiresAt:  now.Add(m.ttl),
	}

	if err := m.store.Save(ctx, session); err != nil {
		return models.Session{}, err
	}
	return session, nil
}

// Token mints a signed token for the session: an HS256 JWT carrying the
// session id and expiry, so tampering is detectable without a storage lookup.
func (m *SessionManager) Token(session models.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   session.ID,
		IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Current resolves a presented token to its live session. The token is only a
// cheap integrity gate; the stored row remains the source of truth for expiry
// and revocation. On success accessed_at is advanced to now.
func (m *SessionManager) Current(ctx context.Context, token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, ErrTokenInvalid
	}

	claims := jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Session{}, ErrSessionExpired
		}
		return models.Session{}, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return models.Session{}, ErrTokenInvalid
	}

	session, err := m.store.Find(ctx, claims.Subject)
	if err != nil {
		return models.Session{}, err
	}

	now := m.now()
	if session.Expired(now) {
		return models.Session{}, ErrSessionExpired
	}

	if err := m.store.Touch(ctx, session.ID, now); err != nil {
		return models.Session{}, err
	}
	session.AccessedAt = now

	return session, nil
}

// Revoke removes the session with the given id. Missing sessions are not an error.
func (m *SessionManager) Revoke(ctx context.Context, id string) error {
	err := m.store.Delete(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	return err
}

func (m *SessionManager) now() time.Time {
	if m.NowFunc != nil {
		return m.NowFunc()
	}
	return time.Now().UTC()
}
