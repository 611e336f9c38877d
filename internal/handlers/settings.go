package handlers

import (
	"errors"
	"net/http"

	"github.com/streamtrack/backend/internal/logging"
	"github.com/streamtrack/backend/internal/models"
	"github.com/streamtrack/backend/internal/repositories"
)

// SettingsHandler implements the per-user client preferences endpoints.
type SettingsHandler struct {
	Sessions SessionManager
	Settings SettingsStore
}

// Get handles GET /users/{id}/settings. Users who never saved settings get
// the defaults.
func (h SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	settings, err := h.Settings.Get(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		settings = models.DefaultSettings(userID)
	} else if err != nil {
		logging.FromContext(ctx).Error("load settings", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	respondJSON(ctx, w, http.StatusOK, shapeSettings(settings))
}

type settingsPutRequest struct {
	ApplicationTheme        *string  `json:"applicationTheme"`
	ApplicationLanguage     string   `json:"applicationLanguage" validate:"required"`
	DefaultSubtitleLanguage *string  `json:"defaultSubtitleLanguage"`
	ProxyURLs               []string `json:"proxyUrls" validate:"omitempty,dive,url"`
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

// Put handles PUT /users/{id}/settings: a whole-row replace.
func (h SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	var req settingsPutRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	settings := models.UserSettings{
		UserID:                  userID,
		ApplicationTheme:        req.ApplicationTheme,
		ApplicationLanguage:     req.ApplicationLanguage,
		DefaultSubtitleLanguage: req.DefaultSubtitleLanguage,
		ProxyURLs:               req.ProxyURLs,
		TraktKey:                req.TraktKey,
		EnableThumbnails:        req.EnableThumbnails,
		EnableAutoplay:          req.EnableAutoplay,
		EnableSkipCredits:       req.EnableSkipCredits,
		SourceOrder:             req.SourceOrder,
		EnableSourceOrder:       req.EnableSourceOrder,
		DisabledSources:         req.DisabledSources,
		EnableLowPerformance:    req.EnableLowPerformance,
		HomeSectionOrder:        req.HomeSectionOrder,
	}

	saved, err := h.Settings.Upsert(ctx, settings)
	if err != nil {
		logging.FromContext(ctx).Error("save settings", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	respondJSON(ctx, w, http.StatusOK, shapeSettings(saved))
}
