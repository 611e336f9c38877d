package handlers

import (
	"context"
	"time"

	"github.com/streamtrack/backend/internal/auth"
	"github.com/streamtrack/backend/internal/models"
)

// AuthService orchestrates the challenge-based register and login flows.
type AuthService interface {
	StartRegister(ctx context.Context, captchaToken string) (auth.Challenge, error)
	CompleteRegister(ctx context.Context, req auth.CompleteRegistration) (auth.Result, error)
	StartLogin(ctx context.Context, publicKey string) (auth.Challenge, error)
	CompleteLogin(ctx context.Context, req auth.CompleteLogin) (auth.Result, error)
}

// SessionManager resolves and revokes sessions from bearer tokens.
type SessionManager interface {
	Current(ctx context.Context, token string) (models.Session, error)
	Revoke(ctx context.Context, id string) error
}

// SessionStore captures the session persistence the user handlers need beyond
// token resolution.
type SessionStore interface {
	Find(ctx context.Context, id string) (models.Session, error)
	ListForUser(ctx context.Context, userID string) ([]models.Session, error)
	DeleteForUser(ctx context.Context, userID string) (int64, error)
}

// UserStore captures the user persistence operations the user handlers need.
type UserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	UpdateProfile(ctx context.Context, userID string, profile *models.Profile, nickname *string) (models.User, error)
	ReplaceRatings(ctx context.Context, userID string, ratings []models.Rating) error
	Delete(ctx context.Context, userID string) error
	Count(ctx context.Context) (int64, error)
}

// ProgressStore captures persistence for playback progress.
type ProgressStore interface {
	Upsert(ctx context.Context, item models.ProgressItem) (models.ProgressItem, error)
	ListForUser(ctx context.Context, userID string) ([]models.ProgressItem, error)
	Delete(ctx context.Context, userID, tmdbID string, seasonID, episodeID *string) (int64, error)
	DeleteByIDs(ctx context.Context, userID string, ids []string) (int64, error)
	DeleteForUser(ctx context.Context, userID string) (int64, error)
}

// ProgressReconciler decides whether a submitted progress sample is worth
// persisting.
type ProgressReconciler interface {
	ShouldSave(ctx context.Context, item models.ProgressItem) (bool, error)
}

// WatchHistoryStore captures persistence for watch events.
type WatchHistoryStore interface {
	Upsert(ctx context.Context, item models.WatchHistoryItem) (models.WatchHistoryItem, error)
	ListForUser(ctx context.Context, userID string) ([]models.WatchHistoryItem, error)
	Delete(ctx context.Context, userID, tmdbID string, seasonID, episodeID *string) (int64, error)
	DeleteForUser(ctx context.Context, userID string) (int64, error)
}

// BookmarkStore captures persistence for bookmarks and bookmark group order.
type BookmarkStore interface {
	Upsert(ctx context.Context, bookmark models.Bookmark) (models.Bookmark, error)
	ListForUser(ctx context.Context, userID string) ([]models.Bookmark, error)
	Delete(ctx context.Context, userID, tmdbID string) error
	DeleteForUser(ctx context.Context, userID string) (int64, error)
	GroupOrder(ctx context.Context, userID string) ([]string, error)
	SetGroupOrder(ctx context.Context, userID string, order []string) error
}

// ListStore captures persistence for user-curated lists.
type ListStore interface {
	Create(ctx context.Context, list models.List) (models.List, error)
	ListForUser(ctx context.Context, userID string) ([]models.List, error)
	FindByID(ctx context.Context, listID string) (models.List, error)
	UpdateMeta(ctx context.Context, listID string, name, description *string, public *bool) (models.List, error)
	AddItems(ctx context.Context, listID string, items []models.ListItem) error
	RemoveItems(ctx context.Context, listID string, itemIDs []string) (int64, error)
	Delete(ctx context.Context, listID string) error
	DeleteForUser(ctx context.Context, userID string) (int64, error)
}

// SettingsStore captures persistence for per-user client preferences.
type SettingsStore interface {
	Get(ctx context.Context, userID string) (models.UserSettings, error)
	Upsert(ctx context.Context, settings models.UserSettings) (models.UserSettings, error)
	DeleteForUser(ctx context.Context, userID string) error
}

// MetricsRecorder receives the usage signals reported by clients.
type MetricsRecorder interface {
	SetUserCount(count int64)
	RecordCaptchaSolve(success bool)
	RecordProviderStatus(providerID, status string)
	RecordWatchEvent(tmdbFullID, providerID string, success bool)
}

// Clock lets handlers stamp times consistently and tests control them.
type Clock func() time.Time
