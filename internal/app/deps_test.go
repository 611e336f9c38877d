package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamtrack/backend/internal/config"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

func TestBuildDependencies(t *testing.T) {
	cfg := config.Config{
		SessionSecret:  "test-secret",
		SessionTTL:     30 * 24 * time.Hour,
		ChallengeTTL:   10 * time.Minute,
		AuthRateLimit:  10,
		AuthRateWindow: time.Minute,
		AuthRateBurst:  5,
	}

	deps, sweep, err := buildDependencies(fakePool{}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sweep == nil {
		t.Fatal("expected an expiry sweep to be configured")
	}

	if deps.Auth == nil {
		t.Fatal("expected auth service to be configured")
	}
	if deps.Sessions == nil {
		t.Fatal("expected session manager to be configured")
	}
	if deps.Users == nil {
		t.Fatal("expected user repository to be configured")
	}
	if deps.Progress == nil || deps.Reconciler == nil {
		t.Fatal("expected progress storage and reconciler to be configured")
	}
	if deps.History == nil || deps.Bookmarks == nil || deps.Lists == nil || deps.Settings == nil {
		t.Fatal("expected media repositories to be configured")
	}
	if deps.Metrics == nil || deps.MetricsExposition == nil {
		t.Fatal("expected metrics instruments and exposition handler to be configured")
	}
	if deps.MetricsDailyExposition == nil || deps.MetricsWeeklyExposition == nil {
		t.Fatal("expected windowed metrics exposition handlers to be configured")
	}
	if deps.AuthLimiter == nil {
		t.Fatal("expected the auth rate limiter to be configured")
	}
}

func TestBuildDependenciesRequiresSessionSecret(t *testing.T) {
	_, _, err := buildDependencies(fakePool{}, config.Config{SessionTTL: time.Hour})
	if err == nil {
		t.Fatal("expected an error without a session secret")
	}
}
