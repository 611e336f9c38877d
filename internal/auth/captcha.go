package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrCaptchaFailed indicates the captcha token was missing or rejected by the provider.
var ErrCaptchaFailed = errors.New("captcha verification failed")

// HTTPCaptchaVerifier checks captcha tokens against a Turnstile-compatible
// verification endpoint.
type HTTPCaptchaVerifier struct {
	client    *http.Client
	verifyURL string
	secret    string
}

// NewHTTPCaptchaVerifier constructs a verifier for the given endpoint and secret.
func NewHTTPCaptchaVerifier(verifyURL, secret string) *HTTPCaptchaVerifier {
	return &HTTPCaptchaVerifier{
		client:    &http.Client{Timeout: 10 * time.Second},
		verifyURL: verifyURL,
		secret:    secret,
	}
}

// Verify implements CaptchaVerifier.
func (v *HTTPCaptchaVerifier) Verify(ctx context.Context, token string) error {
	if token == "" {
		return ErrCaptchaFailed
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("verify captcha: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode captcha response: %w", err)
	}

	if !result.Success {
		return ErrCaptchaFailed
	}
	return nil
}
