package models

import "time"

// Profile holds the cosmetic identity a user picks for themselves.
type Profile struct {
	Icon   string `json:"icon"`
	ColorA string `json:"colorA"`
	ColorB string `json:"colorB"`
}

// Rating is a single score a user gave a title.
type Rating struct {
	TmdbID int     `json:"tmdb_id"`
	Type   string  `json:"type"`
	Rating float64 `json:"rating"`
}

// User represents an account anchored by an asymmetric public key.
type User struct {
	ID           string
	PublicKey    string
	Namespace    string
	Nickname     string
	Profile      Profile
	Permissions  []string
	Ratings      []Rating
	CreatedAt    time.Time
	LastLoggedIn time.Time
}

// Session is an authenticated device binding for a user.
type Session struct {
	ID         string
	UserID     string
	Device     string
	UserAgent  string
	CreatedAt  time.Time
	AccessedAt time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the session is past its expiry at the given instant.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// MediaMeta is the denormalized title metadata stored alongside user records
// so clients can render rows without a catalog lookup.
type MediaMeta struct {
	Title  string `json:"title"`
	Year   int    `json:"year,omitempty"`
	Poster string `json:"poster,omitempty"`
	Type   string `json:"type"`
}

const (
	MediaTypeMovie = "movie"
	MediaTypeShow  = "show"
)

// ProgressItem is the resumable playback position for one title (or one
// episode of a show). SeasonID/EpisodeID are nil for movies; the storage
// layer maps nil onto a sentinel so the composite uniqueness key stays
// well-defined across both kinds.
type ProgressItem struct {
	ID            string
	UserID        string
	TmdbID        string
	SeasonID      *string
	EpisodeID     *string
	SeasonNumber  *int
	EpisodeNumber *int
	Duration      int64
	Watched       int64
	Meta          MediaMeta
	UpdatedAt     time.Time
}

// SameIdentity reports whether two progress items refer to the same
// (title, season, episode) key.
func (p ProgressItem) SameIdentity(other ProgressItem) bool {
	return p.TmdbID == other.TmdbID &&
		equalOptional(p.SeasonID, other.SeasonID) &&
		equalOptional(p.EpisodeID, other.EpisodeID)
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// WatchHistoryItem records a discrete watch event, as opposed to
// ProgressItem's single mutable position.
type WatchHistoryItem struct {
	ID            string
	UserID        string
	TmdbID        string
	SeasonID      *string
	EpisodeID     *string
	SeasonNumber  *int
	EpisodeNumber *int
	Duration      int64
	Watched       int64
	WatchedAt     time.Time
	Completed     bool
	Meta          MediaMeta
	UpdatedAt     time.Time
}

// Bookmark marks a title a user wants to keep at hand, optionally filed into
// named groups.
type Bookmark struct {
	UserID           string
	TmdbID           string
	Meta             MediaMeta
	Groups           []string
	FavoriteEpisodes []string
	UpdatedAt        time.Time
}

// ListItem is one entry of a user-curated list.
type ListItem struct {
	ID     string `json:"id"`
	TmdbID string `json:"tmdbId"`
	Type   string `json:"type"`
}

// List is a user-curated, optionally public collection of titles.
type List struct {
	ID          string
	UserID      string
	Name        string
	Description string
	Public      bool
	Items       []ListItem
}

// UserSettings stores per-user client preferences as a single row keyed by
// the user id. Pointer fields distinguish "unset" from an explicit value.
type UserSettings struct {
	UserID                  string
	ApplicationTheme        *string
	ApplicationLanguage     string
	DefaultSubtitleLanguage *string
	ProxyURLs               []string
	TraktKey                *string
	EnableThumbnails        bool
	EnableAutoplay          bool
	EnableSkipCredits       bool
	SourceOrder             []string
	EnableSourceOrder       bool
	DisabledSources         []string
	EnableLowPerformance    bool
	HomeSectionOrder        []string
}

// DefaultSettings returns the settings served when a user has never saved any.
func DefaultSettings(userID string) UserSettings {
	return UserSettings{
		UserID:              userID,
		ApplicationLanguage: "en",
		EnableAutoplay:      true,
		EnableSkipCredits:   true,
		SourceOrder:         []string{},
		DisabledSources:     []string{},
		HomeSectionOrder:    []string{},
	}
}
