package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/streamtrack/backend/internal/auth"
	"github.com/streamtrack/backend/internal/logging"
)

// AuthHandler implements the challenge-based registration and login endpoints.
type AuthHandler struct {
	Auth    AuthService
	Metrics MetricsRecorder
	Limiter RateLimiter
}

type challengeResponse struct {
	Challenge string    `json:"challenge"`
	Flow      string    `json:"flow"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type challengeProof struct {
	Code      string `json:"code" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

type registerStartRequest struct {
	CaptchaToken string `json:"captchaToken"`
}

type registerCompleteRequest struct {
	PublicKey string         `json:"publicKey" validate:"required"`
	Challenge challengeProof `json:"challenge" validate:"required"`
	Namespace string         `json:"namespace" validate:"required"`
	Device    string         `json:"device" validate:"required"`
	Profile   profilePayload `json:"profile" validate:"required"`
}

type loginStartRequest struct {
	PublicKey string `json:"publicKey" validate:"required"`
}

type loginCompleteRequest struct {
	PublicKey string         `json:"publicKey" validate:"required"`
	Challenge challengeProof `json:"challenge" validate:"required"`
	Device    string         `json:"device" validate:"required"`
}

type authResultResponse struct {
	User    userResponse    `json:"user"`
	Session sessionResponse `json:"session"`
	Token   string          `json:"token"`
}

// RegisterStart handles POST /auth/register/start.
func (h AuthHandler) RegisterStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "auth") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var req registerStartRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	challenge, err := h.Auth.StartRegister(ctx, req.CaptchaToken)
	if err != nil {
		if errors.Is(err, auth.ErrCaptchaFailed) {
			if h.Metrics != nil {
				h.Metrics.RecordCaptchaSolve(false)
			}
			respondError(ctx, w, http.StatusUnauthorized, "captcha verification failed")
			return
		}
		logging.FromContext(ctx).Error("issue registration challenge", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to issue challenge")
		return
	}

	if h.Metrics != nil && req.CaptchaToken != "" {
		h.Metrics.RecordCaptchaSolve(true)
	}

	respondJSON(ctx, w, http.StatusOK, challengeResponse{
		Challenge: challenge.Code,
		Flow:      challenge.Flow,
		ExpiresAt: challenge.ExpiresAt,
	})
}

// RegisterComplete handles POST /auth/register/complete.
func (h AuthHandler) RegisterComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "auth") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var req registerCompleteRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.Auth.CompleteRegister(ctx, auth.CompleteRegistration{
		PublicKey:     req.PublicKey,
		ChallengeCode: req.Challenge.Code,
		Signature:     req.Challenge.Signature,
		Namespace:     req.Namespace,
		Device:        req.Device,
		UserAgent:     r.UserAgent(),
		Profile:       req.Profile.toModel(),
	})
	if err != nil {
		respondAuthError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, authResultResponse{
		User:    shapeUser(result.User),
		Session: shapeSession(result.Session),
		Token:   result.Token,
	})
}

// LoginStart handles POST /auth/login/start.
func (h AuthHandler) LoginStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "auth") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var req loginStartRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	challenge, err := h.Auth.StartLogin(ctx, req.PublicKey)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			respondError(ctx, w, http.StatusUnauthorized, "user cannot be found")
			return
		}
		logging.FromContext(ctx).Error("issue login challenge", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to issue challenge")
		return
	}

	respondJSON(ctx, w, http.StatusOK, challengeResponse{
		Challenge: challenge.Code,
		Flow:      challenge.Flow,
		ExpiresAt: challenge.ExpiresAt,
	})
}

// LoginComplete handles POST /auth/login/complete.
func (h AuthHandler) LoginComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "auth") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	var req loginCompleteRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.Auth.CompleteLogin(ctx, auth.CompleteLogin{
		PublicKey:     req.PublicKey,
		ChallengeCode: req.Challenge.Code,
		Signature:     req.Challenge.Signature,
		Device:        req.Device,
		UserAgent:     r.UserAgent(),
	})
	if err != nil {
		respondAuthError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResultResponse{
		User:    shapeUser(result.User),
		Session: shapeSession(result.Session),
		Token:   result.Token,
	})
}

func respondAuthError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrDeviceInvalid):
		respondError(ctx, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrChallengeNotFound),
		errors.Is(err, auth.ErrChallengeExpired),
		errors.Is(err, auth.ErrChallengeScope),
		errors.Is(err, auth.ErrChallengeConsumed):
		respondError(ctx, w, http.StatusUnauthorized, "challenge is invalid or expired")
	case errors.Is(err, auth.ErrSignatureInvalid):
		respondError(ctx, w, http.StatusUnauthorized, "signature is not valid")
	case errors.Is(err, auth.ErrUserNotFound):
		respondError(ctx, w, http.StatusUnauthorized, "user cannot be found")
	case errors.Is(err, auth.ErrUserExists):
		respondError(ctx, w, http.StatusConflict, "user already exists")
	default:
		logging.FromContext(ctx).Error("auth flow failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "authentication failed")
	}
}
