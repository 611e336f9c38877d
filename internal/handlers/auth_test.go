package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/streamtrack/backend/internal/auth"
	"github.com/streamtrack/backend/internal/models"
)

type fakeAuthService struct {
	challenge auth.Challenge
	result    auth.Result

	startRegisterErr    error
	completeRegisterErr error
	startLoginErr       error
	completeLoginErr    error

	captchaTokens []string
	registrations []auth.CompleteRegistration
	logins        []auth.CompleteLogin
}

func (f *fakeAuthService) StartRegister(_ context.Context, captchaToken string) (auth.Challenge, error) {
	f.captchaTokens = append(f.captchaTokens, captchaToken)
	if f.startRegisterErr != nil {
		return auth.Challenge{}, f.startRegisterErr
	}
	return f.challenge, nil
}

func (f *fakeAuthService) CompleteRegister(_ context.Context, req auth.CompleteRegistration) (auth.Result, error) {
	f.registrations = append(f.registrations, req)
	if f.completeRegisterErr != nil {
		return auth.Result{}, f.completeRegisterErr
	}
	return f.result, nil
}

func (f *fakeAuthService) StartLogin(_ context.Context, publicKey string) (auth.Challenge, error) {
	if f.startLoginErr != nil {
		return auth.Challenge{}, f.startLoginErr
	}
	return f.challenge, nil
}

func (f *fakeAuthService) CompleteLogin(_ context.Context, req auth.CompleteLogin) (auth.Result, error) {
	f.logins = append(f.logins, req)
	if f.completeLoginErr != nil {
		return auth.Result{}, f.completeLoginErr
	}
	return f.result, nil
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

func testChallenge(flow string) auth.Challenge {
	return auth.Challenge{
		Code:      "challenge-code",
		Flow:      flow,
		KeyKind:   auth.KeyKindMnemonic,
		CreatedAt: testNow,
		ExpiresAt: testNow.Add(10 * time.Minute),
	}
}

func testAuthResult() auth.Result {
	return auth.Result{
		User: models.User{
			ID:        "user-1",
			PublicKey: "public-key",
			Nickname:  "QuietOtter07",
		},
		Session: testSession("user-1"),
		Token:   "minted-token",
	}
}

func TestAuthHandlerRegisterStart(t *testing.T) {
	metrics := &fakeMetricsRecorder{}
	service := &fakeAuthService{challenge: testChallenge(auth.FlowRegistration)}
	handler := AuthHandler{Auth: service, Metrics: metrics}

	req := newRequest(t, http.MethodPost, "/auth/register/start", map[string]string{"captchaToken": "ct"})
	rec := httptest.NewRecorder()
	handler.RegisterStart(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}

	var payload challengeResponse
	decodeResponse(t, rec, &payload)
	if payload.Challenge != "challenge-code" || payload.Flow != auth.FlowRegistration {
		t.Fatalf("unexpected challenge payload: %+v", payload)
	}
	if len(service.captchaTokens) != 1 || service.captchaTokens[0] != "ct" {
		t.Fatalf("expected the captcha token to reach the service, got %v", service.captchaTokens)
	}
	if len(metrics.captchaSolves) != 1 || !metrics.captchaSolves[0] {
		t.Fatalf("expected a successful captcha solve to be recorded, got %v", metrics.captchaSolves)
	}
}

func TestAuthHandlerRegisterStartCaptchaFailure(t *testing.T) {
	metrics := &fakeMetricsRecorder{}
	service := &fakeAuthService{startRegisterErr: auth.ErrCaptchaFailed}
	handler := AuthHandler{Auth: service, Metrics: metrics}

	req := newRequest(t, http.MethodPost, "/auth/register/start", map[string]string{"captchaToken": "bad"})
	rec := httptest.NewRecorder()
	handler.RegisterStart(rec, req)

	assertErrorResponse(t, rec, http.StatusUnauthorized)
	if len(metrics.captchaSolves) != 1 || metrics.captchaSolves[0] {
		t.Fatalf("expected a failed captcha solve to be recorded, got %v", metrics.captchaSolves)
	}
}

func TestAuthHandlerRateLimited(t *testing.T) {
	handler := AuthHandler{Auth: &fakeAuthService{}, Limiter: denyAllLimiter{}}

	req := newRequest(t, http.MethodPost, "/auth/register/start", map[string]string{})
	rec := httptest.NewRecorder()
	handler.RegisterStart(rec, req)

	assertErrorResponse(t, rec, http.StatusTooManyRequests)
}

func TestAuthHandlerRegisterComplete(t *testing.T) {
	service := &fakeAuthService{result: testAuthResult()}
	handler := AuthHandler{Auth: service}

	body := map[string]any{
		"publicKey": "public-key",
		"challenge": map[string]string{"code": "challenge-code", "signature": "sig"},
		"namespace": "mobile",
		"device":    "Pixel 9",
		"profile":   map[string]string{"icon": "cat", "colorA": "#112233", "colorB": "#445566"},
	}
	req := newRequest(t, http.MethodPost, "/auth/register/complete", body)
	req.Header.Set("User-Agent", "test-agent/1.0")
	rec := httptest.NewRecorder()
	handler.RegisterComplete(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %q)", rec.Code, rec.Body.String())
	}

	var payload authResultResponse
	decodeResponse(t, rec, &payload)
	if payload.User.ID != "user-1" || payload.Token != "minted-token" {
		t.Fatalf("unexpected result payload: %+v", payload)
	}
	if payload.User.Name != "QuietOtter07" {
		t.Fatalf("expected the nickname as name, got %q", payload.User.Name)
	}

	if len(service.registrations) != 1 {
		t.Fatalf("expected one registration, got %d", len(service.registrations))
	}
	got := service.registrations[0]
	if got.ChallengeCode != "challenge-code" || got.Signature != "sig" {
		t.Fatalf("unexpected challenge proof: %+v", got)
	}
	if got.UserAgent != "test-agent/1.0" {
		t.Fatalf("expected the user agent from the request, got %q", got.UserAgent)
	}
	if got.Profile.Icon != "cat" {
		t.Fatalf("unexpected profile: %+v", got.Profile)
	}
}

func TestAuthHandlerRegisterCompleteValidation(t *testing.T) {
	handler := AuthHandler{Auth: &fakeAuthService{}}

	// Missing the challenge proof entirely.
	body := map[string]any{
		"publicKey": "public-key",
		"namespace": "mobile",
		"device":    "Pixel 9",
		"profile":   map[string]string{"icon": "cat", "colorA": "#112233", "colorB": "#445566"},
	}
	req := newRequest(t, http.MethodPost, "/auth/register/complete", body)
	rec := httptest.NewRecorder()
	handler.RegisterComplete(rec, req)

	assertErrorResponse(t, rec, http.StatusBadRequest)
}

func TestAuthHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "device invalid", err: auth.ErrDeviceInvalid, status: http.StatusBadRequest},
		{name: "challenge not found", err: auth.ErrChallengeNotFound, status: http.StatusUnauthorized},
		{name: "challenge expired", err: auth.ErrChallengeExpired, status: http.StatusUnauthorized},
		{name: "challenge consumed", err: auth.ErrChallengeConsumed, status: http.StatusUnauthorized},
		{name: "bad signature", err: auth.ErrSignatureInvalid, status: http.StatusUnauthorized},
		{name: "duplicate key", err: auth.ErrUserExists, status: http.StatusConflict},
	}

	body := map[string]any{
		"publicKey": "public-key",
		"challenge": map[string]string{"code": "challenge-code", "signature": "sig"},
		"namespace": "mobile",
		"device":    "Pixel 9",
		"profile":   map[string]string{"icon": "cat", "colorA": "#112233", "colorB": "#445566"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := AuthHandler{Auth: &fakeAuthService{completeRegisterErr: tc.err}}

			req := newRequest(t, http.MethodPost, "/auth/register/complete", body)
			rec := httptest.NewRecorder()
			handler.RegisterComplete(rec, req)

			assertErrorResponse(t, rec, tc.status)
		})
	}
}

func TestAuthHandlerLoginStartUnknownUser(t *testing.T) {
	handler := AuthHandler{Auth: &fakeAuthService{startLoginErr: auth.ErrUserNotFound}}

	req := newRequest(t, http.MethodPost, "/auth/login/start", map[string]string{"publicKey": "unknown"})
	rec := httptest.NewRecorder()
	handler.LoginStart(rec, req)

	message := assertErrorResponse(t, rec, http.StatusUnauthorized)
	if message != "user cannot be found" {
		t.Fatalf("unexpected error message %q", message)
	}
}

func TestAuthHandlerLoginComplete(t *testing.T) {
	service := &fakeAuthService{result: testAuthResult()}
	handler := AuthHandler{Auth: service}

	body := map[string]any{
		"publicKey": "public-key",
		"challenge": map[string]string{"code": "challenge-code", "signature": "sig"},
		"device":    "living room tv",
	}
	req := newRequest(t, http.MethodPost, "/auth/login/complete", body)
	rec := httptest.NewRecorder()
	handler.LoginComplete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %q)", rec.Code, rec.Body.String())
	}

	var payload authResultResponse
	decodeResponse(t, rec, &payload)
	if payload.Session.UserID != "user-1" {
		t.Fatalf("unexpected session payload: %+v", payload.Session)
	}
	if len(service.logins) != 1 || service.logins[0].Device != "living room tv" {
		t.Fatalf("unexpected login request: %+v", service.logins)
	}
}
