package auth

import (
	"context"
	"sync"
	"time"

	"github.com/streamtrack/backend/internal/models"
)

// NewInMemoryChallengeStore returns a ChallengeStore backed by a map.
func NewInMemoryChallengeStore() *InMemoryChallengeStore {
	return &InMemoryChallengeStore{challenges: make(map[string]Challenge)}
}

// InMemoryChallengeStore implements ChallengeStore for tests and local development.
type InMemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]Challenge
}

// Save persists the challenge record.
func (s *InMemoryChallengeStore) Save(_ context.Context, challenge Challenge) error {
	s.mu.Lock()
	s.challenges[challenge.Code] = challenge
	s.mu.Unlock()
	return nil
}

// Find retrieves a challenge by code.
func (s *InMemoryChallengeStore) Find(_ context.Context, code string) (Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenge, ok := s.challenges[code]
	if !ok {
		return Challenge{}, ErrChallengeNotFound
	}
	return challenge, nil
}

// Consume marks the challenge consumed; it reports false when the code was
// already consumed, mirroring the store's compare-and-set semantics.
func (s *InMemoryChallengeStore) Consume(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenge, ok := s.challenges[code]
	if !ok || challenge.Consumed {
		return false, nil
	}
	challenge.Consumed = true
	s.challenges[code] = challenge
	return true, nil
}

// NewInMemorySessionStore returns a SessionStore backed by a map.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]models.Session)}
}

// InMemorySessionStore implements SessionStore for tests and local development.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
}

// Save persists the provided session record.
func (s *InMemorySessionStore) Save(_ context.Context, session models.Session) error {
	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return nil
}

// Find retrieves a session by id.
func (s *InMemorySessionStore) Find(_ context.Context, id string) (models.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Touch advances accessed_at on the stored session.
func (s *InMemorySessionStore) Touch(_ context.Context, id string, accessedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.AccessedAt = accessedAt
	s.sessions[id] = session
	return nil
}

// Delete removes the session with the given id.
func (s *InMemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Has reports whether a session id exists. Useful for tests.
func (s *InMemorySessionStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}
