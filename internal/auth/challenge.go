package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"
)

// Challenge flows and key kinds a code can be scoped to.
const (
	FlowRegistration = "registration"
	FlowLogin        = "login"

	KeyKindMnemonic = "mnemonic"
)

var (
	// ErrChallengeNotFound indicates the provided code was never issued.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrChallengeExpired indicates the code is past its expiry.
	ErrChallengeExpired = errors.New("challenge expired")
	// ErrChallengeScope indicates the code was issued for a different flow or key kind.
	ErrChallengeScope = errors.New("challenge scope mismatch")
	// ErrChallengeConsumed indicates the code has already been used.
	ErrChallengeConsumed = errors.New("challenge already used")
)

// Challenge is a one-time proof-of-possession nonce a client must sign.
type Challenge struct {
	Code      string
	Flow      string
	KeyKind   string
	CreatedAt time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// ChallengeStore persists issued challenge codes. Consume must be an atomic
// consume-if-unconsumed so racing verifications resolve to a single winner.
type ChallengeStore interface {
	Save(ctx context.Context, challenge Challenge) error
	Find(ctx context.Context, code string) (Challenge, error)
	Consume(ctx context.Context, code string) (bool, error)
}

// Challenger issues and verifies short-lived one-time challenge codes.
type Challenger struct {
	ttl      time.Duration
	store    ChallengeStore
	verifier SignatureVerifier

	// NowFunc overrides the clock for tests.
	NowFunc func() time.Time
}

// NewChallenger constructs a Challenger issuing codes with the provided TTL.
func NewChallenger(ttl time.Duration, store ChallengeStore, verifier SignatureVerifier) *Challenger {
	if store == nil {
		panic("auth: challenge store must not be nil")
	}
	if verifier == nil {
		panic("auth: signature verifier must not be nil")
	}
	return &Challenger{ttl: ttl, store: store, verifier: verifier}
}

// Issue generates and persists a new challenge code scoped to the flow and key kind.
func (c *Challenger) Issue(ctx context.Context, flow, keyKind string) (Challenge, error) {
	code, err := randomCode()
	if err != nil {
		return Challenge{}, err
	}

	now := c.now()
	challenge := Challenge{
		Code:      code,
		Flow:      flow,
		KeyKind:   keyKind,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}

	if err := c.store.Save(ctx, challenge); err != nil {
		return Challenge{}, err
	}
	return challenge, nil
}

// Verify checks that the code was issued for (flow, keyKind), is live and
// unconsumed, and that the signature over it verifies against publicKey. On
// success the code is consumed atomically; a failed signature leaves the code
// intact so the client may retry until expiry.
func (c *Challenger) Verify(ctx context.Context, code, publicKey, signature, flow, keyKind string) error {
	challenge, err := c.store.Find(ctx, code)
	if err != nil {
		return err
	}

	if challenge.Flow != flow || challenge.KeyKind != keyKind {
		return ErrChallengeScope
	}
	if !c.now().Before(challenge.ExpiresAt) {
		return ErrChallengeExpired
	}
	if challenge.Consumed {
		return ErrChallengeConsumed
	}

	if err := c.verifier.Verify(publicKey, challenge.Code, signature); err != nil {
		return err
	}

	consumed, err := c.store.Consume(ctx, code)
	if err != nil {
		return err
	}
	if !consumed {
		// Lost the race against a concurrent verification.
		return ErrChallengeConsumed
	}
	return nil
}

func (c *Challenger) now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now().UTC()
}

func randomCode() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
