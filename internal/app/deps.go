package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamtrack/backend/internal/auth"
	"github.com/streamtrack/backend/internal/config"
	"github.com/streamtrack/backend/internal/db"
	"github.com/streamtrack/backend/internal/handlers"
	"github.com/streamtrack/backend/internal/logging"
	"github.com/streamtrack/backend/internal/metrics"
	"github.com/streamtrack/backend/internal/middleware"
	"github.com/streamtrack/backend/internal/progress"
	"github.com/streamtrack/backend/internal/repositories"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned sweep prunes expired sessions and challenge codes and
// is meant to run on a timer alongside the server.
func buildDependencies(pool db.Pool, cfg config.Config) (handlers.Dependencies, func(context.Context), error) {
	sessionStore := repositories.NewPostgresSessionStore(pool)
	challengeStore := repositories.NewPostgresChallengeStore(pool)
	userRepo := repositories.NewPostgresUserRepository(pool)
	progressRepo := repositories.NewPostgresProgressRepository(pool)

	sessions, err := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, sessionStore)
	if err != nil {
		return handlers.Dependencies{}, nil, fmt.Errorf("build session manager: %w", err)
	}

	challenger := auth.NewChallenger(cfg.ChallengeTTL, challengeStore, auth.Ed25519Verifier{})

	var captcha auth.CaptchaVerifier
	if cfg.CaptchaVerifyURL != "" {
		captcha = auth.NewHTTPCaptchaVerifier(cfg.CaptchaVerifyURL, cfg.CaptchaSecret)
	}

	instruments := metrics.New()

	sweep := func(ctx context.Context) {
		now := time.Now().UTC()
		logger := logging.FromContext(ctx)
		if n, err := sessionStore.DeleteExpired(ctx, now); err != nil {
			logger.Warn("prune expired sessions", "error", err)
		} else if n > 0 {
			logger.Info("pruned expired sessions", "count", n)
		}
		if n, err := challengeStore.DeleteExpired(ctx, now); err != nil {
			logger.Warn("prune expired challenges", "error", err)
		} else if n > 0 {
			logger.Info("pruned expired challenges", "count", n)
		}
	}

	return handlers.Dependencies{
		Auth:                    auth.NewService(challenger, sessions, userRepo, captcha),
		Sessions:                sessions,
		SessionStore:            sessionStore,
		Users:                   userRepo,
		Progress:                progressRepo,
		Reconciler:              progress.NewReconciler(progressRepo),
		History:                 repositories.NewPostgresWatchHistoryRepository(pool),
		Bookmarks:               repositories.NewPostgresBookmarkRepository(pool),
		Lists:                   repositories.NewPostgresListRepository(pool),
		Settings:                repositories.NewPostgresSettingsRepository(pool),
		Metrics:                 instruments,
		MetricsExposition:       promhttp.HandlerFor(instruments.Registry, promhttp.HandlerOpts{}),
		MetricsDailyExposition:  instruments.Daily.Handler(),
		MetricsWeeklyExposition: instruments.Weekly.Handler(),
		AuthLimiter: middleware.NewIPRateLimiter(
			cfg.AuthRateLimit, cfg.AuthRateWindow, cfg.AuthRateBurst, 10*time.Minute),
	}, sweep, nil
}
