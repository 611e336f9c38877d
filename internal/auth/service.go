package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/streamtrack/backend/internal/models"
)

var (
	// ErrUserNotFound indicates no account owns the presented public key.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists indicates an account already owns the presented public key.
	ErrUserExists = errors.New("a user with this public key already exists")
)

// UserStore captures the user persistence operations the auth flows need.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByPublicKey(ctx context.Context, publicKey string) (models.User, error)
	RecordLogin(ctx context.Context, userID string, at time.Time) error
}

// CaptchaVerifier validates a captcha token with an external provider.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) error
}

// CompleteRegistration carries everything needed to finish a registration.
type CompleteRegistration struct {
	PublicKey     string
	ChallengeCode string
	Signature     string
	Namespace     string
	Device        string
	UserAgent     string
	Profile       models.Profile
}

// CompleteLogin carries everything needed to finish a login.
type CompleteLogin struct {
	PublicKey     string
	ChallengeCode string
	Signature     string
	Device        string
	UserAgent     string
}

// Result is what both completion flows hand back to the client.
type Result struct {
	User    models.User
	Session models.Session
	Token   string
}

// Service orchestrates the challenge-based register and login flows.
type Service struct {
	challenges *Challenger
	sessions   *SessionManager
	users      UserStore
	captcha    CaptchaVerifier

	// NowFunc overrides the clock for tests.
	NowFunc func() time.Time
}

// NewService wires the auth service. captcha may be nil, in which case
// registration skips captcha verification.
func NewService(challenges *Challenger, sessions *SessionManager, users UserStore, captcha CaptchaVerifier) *Service {
	if challenges == nil || sessions == nil || users == nil {
		panic("auth: service dependencies must not be nil")
	}
	return &Service{challenges: challenges, sessions: sessions, users: users, captcha: captcha}
}

// StartRegister issues a registration challenge, verifying the captcha token
// first when a verifier is configured.
func (s *Service) StartRegister(ctx context.Context, captchaToken string) (Challenge, error) {
	if s.captcha != nil {
		if err := s.captcha.Verify(ctx, captchaToken); err != nil {
			return Challenge{}, err
		}
	}
	return s.challenges.Issue(ctx, FlowRegistration, KeyKindMnemonic)
}

// CompleteRegister verifies the signed challenge, creates the account, and
// opens its first session. The challenge is always checked before the
// existence of the public key is disclosed.
func (s *Service) CompleteRegister(ctx context.Context, req CompleteRegistration) (Result, error) {
	if err := ValidateDevice(req.Device); err != nil {
		return Result{}, err
	}

	if err := s.challenges.Verify(ctx, req.ChallengeCode, req.PublicKey, req.Signature, FlowRegistration, KeyKindMnemonic); err != nil {
		return Result{}, err
	}

	if _, err := s.users.FindByPublicKey(ctx, req.PublicKey); err == nil {
		return Result{}, ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return Result{}, err
	}

	now := s.now()
	user := models.User{
		ID:           uuid.NewString(),
		PublicKey:    req.PublicKey,
		Namespace:    req.Namespace,
		Nickname:     generateNickname(),
		Profile:      req.Profile,
		Permissions:  []string{},
		CreatedAt:    now,
		LastLoggedIn: now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return Result{}, err
	}

	return s.openSession(ctx, user, req.Device, req.UserAgent)
}

// StartLogin issues a login challenge for an existing account.
func (s *Service) StartLogin(ctx context.Context, publicKey string) (Challenge, error) {
	if _, err := s.users.FindByPublicKey(ctx, publicKey); err != nil {
		return Challenge{}, err
	}
	return s.challenges.Issue(ctx, FlowLogin, KeyKindMnemonic)
}

// CompleteLogin verifies the signed challenge, stamps last_logged_in, and
// opens a session. The challenge is checked before the account lookup.
func (s *Service) CompleteLogin(ctx context.Context, req CompleteLogin) (Result, error) {
	if err := ValidateDevice(req.Device); err != nil {
		return Result{}, err
	}

	if err := s.challenges.Verify(ctx, req.ChallengeCode, req.PublicKey, req.Signature, FlowLogin, KeyKindMnemonic); err != nil {
		return Result{}, err
	}

	user, err := s.users.FindByPublicKey(ctx, req.PublicKey)
	if err != nil {
		return Result{}, err
	}

	now := s.now()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		return Result{}, err
	}
	user.LastLoggedIn = now

	return s.openSession(ctx, user, req.Device, req.UserAgent)
}

func (s *Service) openSession(ctx context.Context, user models.User, device, userAgent string) (Result, error) {
	session, err := s.sessions.Create(ctx, user.ID, device, userAgent)
	if err != nil {
		return Result{}, err
	}

	token, err := s.sessions.Token(session)
	if err != nil {
		return Result{}, err
	}

	return Result{User: user, Session: session, Token: token}, nil
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}
