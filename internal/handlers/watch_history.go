package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/streamtrack/backend/internal/logging"
	"github.com/streamtrack/backend/internal/models"
	"github.com/streamtrack/backend/internal/progress"
)

// WatchHistoryHandler implements the watch event log endpoints. Unlike
// progress, every submitted event is recorded as-is.
type WatchHistoryHandler struct {
	Sessions SessionManager
	History  WatchHistoryStore
	NowFunc  Clock
}

func (h WatchHistoryHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

// List handles GET /users/{id}/watch-history.
func (h WatchHistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	items, err := h.History.ListForUser(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("list watch history", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list watch history")
		return
	}

	shaped := make([]historyItemResponse, 0, len(items))
	for _, item := range items {
		shaped = append(shaped, shapeHistoryItem(item))
	}
	respondJSON(ctx, w, http.StatusOK, shaped)
}

type historyPutRequest struct {
	Meta          mediaMetaPayload `json:"meta" validate:"required"`
	Duration      int64            `json:"duration" validate:"min=0"`
	Watched       int64            `json:"watched" validate:"min=0"`
	WatchedAt     *time.Time       `json:"watchedAt"`
	Completed     bool             `json:"completed"`
	SeasonID      *string          `json:"seasonId"`
	EpisodeID     *string          `json:"episodeId"`
	SeasonNumber  *int             `json:"seasonNumber"`
	EpisodeNumber *int             `json:"episodeNumber"`
}

// Put handles PUT /users/{id}/watch-history/{tmdbId}.
func (h WatchHistoryHandler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	var req historyPutRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.now()
	item := models.WatchHistoryItem{
		ID:            uuid.NewString(),
		UserID:        userID,
		TmdbID:        r.PathValue("tmdbId"),
		SeasonID:      req.SeasonID,
		EpisodeID:     req.EpisodeID,
		SeasonNumber:  req.SeasonNumber,
		EpisodeNumber: req.EpisodeNumber,
		Duration:      req.Duration,
		Watched:       req.Watched,
		WatchedAt:     progress.ClampTimestamp(req.WatchedAt, now),
		Completed:     req.Completed,
		Meta:          req.Meta.toModel(),
		UpdatedAt:     now,
	}
	if item.Meta.Type == models.MediaTypeMovie {
		item.SeasonID = nil
		item.EpisodeID = nil
		item.SeasonNumber = nil
		item.EpisodeNumber = nil
	}

	saved, err := h.History.Upsert(ctx, item)
	if err != nil {
		logging.FromContext(ctx).Error("upsert watch event", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to save watch event")
		return
	}

	respondJSON(ctx, w, http.StatusOK, shapeHistoryItem(saved))
}

type historyDeleteRequest struct {
	SeasonID  *string `json:"seasonId"`
	EpisodeID *string `json:"episodeId"`
}

// Delete handles DELETE /users/{id}/watch-history/{tmdbId}.
func (h WatchHistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	var req historyDeleteRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
	}

	tmdbID := r.PathValue("tmdbId")
	count, err := h.History.Delete(ctx, userID, tmdbID, req.SeasonID, req.EpisodeID)
	if err != nil {
		logging.FromContext(ctx).Error("delete watch events", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to delete watch events")
		return
	}

	payload := map[string]any{"success": true, "count": count, "tmdbId": tmdbID}
	if req.SeasonID != nil {
		payload["seasonId"] = *req.SeasonID
	}
	if req.EpisodeID != nil {
		payload["episodeId"] = *req.EpisodeID
	}
	respondJSON(ctx, w, http.StatusOK, payload)
}
