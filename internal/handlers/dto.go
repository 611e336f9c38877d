package handlers

import (
	"time"

	"github.com/streamtrack/backend/internal/models"
)

type profilePayload struct {
	Icon   string `json:"icon" validate:"required"`
	ColorA string `json:"colorA" validate:"required"`
	ColorB string `json:"colorB" validate:"required"`
}

func (p profilePayload) toModel() models.Profile {
	return models.Profile{Icon: p.Icon, ColorA: p.ColorA, ColorB: p.ColorB}
}

type userResponse struct {
	ID           string          `json:"id"`
	Namespace    string          `json:"namespace"`
	Name         string          `json:"name"`
	PublicKey    string          `json:"publicKey"`
	Profile      models.Profile  `json:"profile"`
	Permissions  []string        `json:"permissions"`
	Ratings      []models.Rating `json:"ratings"`
	CreatedAt    time.Time       `json:"createdAt"`
	LastLoggedIn time.Time       `json:"lastLoggedIn"`
}

func shapeUser(user models.User) userResponse {
	permissions := user.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	ratings := user.Ratings
	if ratings == nil {
		ratings = []models.Rating{}
	}
	return userResponse{
		ID:           user.ID,
		Namespace:    user.Namespace,
		Name:         user.Nickname,
		PublicKey:    user.PublicKey,
		Profile:      user.Profile,
		Permissions:  permissions,
		Ratings:      ratings,
		CreatedAt:    user.CreatedAt,
		LastLoggedIn: user.LastLoggedIn,
	}
}

type sessionResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Device     string    `json:"device"`
	UserAgent  string    `json:"userAgent"`
	CreatedAt  time.Time `json:"createdAt"`
	AccessedAt time.Time `json:"accessedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func shapeSession(session models.Session) sessionResponse {
	return sessionResponse{
		ID:         session.ID,
		UserID:     session.UserID,
		Device:     session.Device,
		UserAgent:  session.UserAgent,
		CreatedAt:  session.CreatedAt,
		AccessedAt: session.AccessedAt,
		ExpiresAt:  session.ExpiresAt,
	}
}

type mediaPartResponse struct {
	ID     *string `json:"id"`
	Number *int    `json:"number"`
}

type progressItemResponse struct {
	ID        string            `json:"id"`
	TmdbID    string            `json:"tmdbId"`
	Season    mediaPartResponse `json:"season"`
	Episode   mediaPartResponse `json:"episode"`
	Duration  int64             `json:"duration"`
	Watched   int64             `json:"watched"`
	Meta      models.MediaMeta  `json:"meta"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func shapeProgressItem(item models.ProgressItem) progressItemResponse {
	return progressItemResponse{
		ID:        item.ID,
		TmdbID:    item.TmdbID,
		Season:    mediaPartResponse{ID: item.SeasonID, Number: item.SeasonNumber},
		Episode:   mediaPartResponse{ID: item.EpisodeID, Number: item.EpisodeNumber},
		Duration:  item.Duration,
		Watched:   item.Watched,
		Meta:      item.Meta,
		UpdatedAt: item.UpdatedAt,
	}
}

type historyItemResponse struct {
	ID        string            `json:"id"`
	TmdbID    string            `json:"tmdbId"`
	Season    mediaPartResponse `json:"season"`
	Episode   mediaPartResponse `json:"episode"`
	Duration  int64             `json:"duration"`
	Watched   int64             `json:"watched"`
	WatchedAt time.Time         `json:"watchedAt"`
	Completed bool              `json:"completed"`
	Meta      models.MediaMeta  `json:"meta"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func shapeHistoryItem(item models.WatchHistoryItem) historyItemResponse {
	return historyItemResponse{
		ID:        item.ID,
		TmdbID:    item.TmdbID,
		Season:    mediaPartResponse{ID: item.SeasonID, Number: item.SeasonNumber},
		Episode:   mediaPartResponse{ID: item.EpisodeID, Number: item.EpisodeNumber},
		Duration:  item.Duration,
		Watched:   item.Watched,
		WatchedAt: item.WatchedAt,
		Completed: item.Completed,
		Meta:      item.Meta,
		UpdatedAt: item.UpdatedAt,
	}
}

type bookmarkResponse struct {
	TmdbID           string           `json:"tmdbId"`
	Meta             models.MediaMeta `json:"meta"`
	Groups           []string         `json:"group"`
	FavoriteEpisodes []string         `json:"favoriteEpisodes"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

func shapeBookmark(bookmark models.Bookmark) bookmarkResponse {
	groups := bookmark.Groups
	if groups == nil {
		groups = []string{}
	}
	favorites := bookmark.FavoriteEpisodes
	if favorites == nil {
		favorites = []string{}
	}
	return bookmarkResponse{
		TmdbID:           bookmark.TmdbID,
		Meta:             bookmark.Meta,
		Groups:           groups,
		FavoriteEpisodes: favorites,
		UpdatedAt:        bookmark.UpdatedAt,
	}
}

type listResponse struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Public      bool              `json:"public"`
	Items       []models.ListItem `json:"items,omitempty"`
}

func shapeList(list models.List) listResponse {
	return listResponse{
		ID:          list.ID,
		UserID:      list.UserID,
		Name:        list.Name,
		Description: list.Description,
		Public:      list.Public,
		Items:       list.Items,
	}
}

type settingsResponse struct {
	ApplicationTheme        *string  `json:"applicationTheme"`
	ApplicationLanguage     string   `json:"applicationLanguage"`
	DefaultSubtitleLanguage *string  `json:"defaultSubtitleLanguage"`
	ProxyURLs               []string `json:"proxyUrls"`
	TraktKey                *string  `json:"traktKey"`
	EnableThumbnails        bool     `json:"enableThumbnails"`
	EnableAutoplay          bool     `json:"enableAutoplay"`
	EnableSkipCredits       bool     `json:"enableSkipCredits"`
	SourceOrder             []string `json:"sourceOrder"`
	EnableSourceOrder       bool     `json:"enableSourceOrder"`
	DisabledSources         []string `json:"disabledSources"`
	EnableLowPerformance    bool     `json:"enableLowPerformanceMode"`
	HomeSectionOrder        []string `json:"homeSectionOrder"`
}

func shapeSettings(settings models.UserSettings) settingsResponse {
	return settingsResponse{
		ApplicationTheme:        settings.ApplicationTheme,
		ApplicationLanguage:     settings.ApplicationLanguage,
		DefaultSubtitleLanguage: settings.DefaultSubtitleLanguage,
		ProxyURLs:               settings.ProxyURLs,
		TraktKey:                settings.TraktKey,
		EnableThumbnails:        settings.EnableThumbnails,
		EnableAutoplay:          settings.EnableAutoplay,
		EnableSkipCredits:       settings.EnableSkipCredits,
		SourceOrder:             settings.SourceOrder,
		EnableSourceOrder:       settings.EnableSourceOrder,
		DisabledSources:         settings.DisabledSources,
		EnableLowPerformance:    settings.EnableLowPerformance,
		HomeSectionOrder:        settings.HomeSectionOrder,
	}
}
