package handlers

import (
	"net/http"
	"time"

	"github.com/streamtrack/backend/internal/logging"
	"github.com/streamtrack/backend/internal/models"
)

// BookmarkHandler implements bookmark and bookmark group order endpoints.
type BookmarkHandler struct {
	Sessions  SessionManager
	Bookmarks BookmarkStore
	NowFunc   Clock
}

func (h BookmarkHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

// List handles GET /users/{id}/bookmarks.
func (h BookmarkHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	bookmarks, err := h.Bookmarks.ListForUser(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("list bookmarks", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list bookmarks")
		return
	}

	shaped := make([]bookmarkResponse, 0, len(bookmarks))
	for _, bookmark := range bookmarks {
		shaped = append(shaped, shapeBookmark(bookmark))
	}
	respondJSON(ctx, w, http.StatusOK, shaped)
}

type bookmarkPayload struct {
	TmdbID           string           `json:"tmdbId" validate:"required"`
	Meta             mediaMetaPayload `json:"meta" validate:"required"`
	Groups           []string         `json:"group"`
	FavoriteEpisodes []string         `json:"favoriteEpisodes"`
}

func (p bookmarkPayload) toModel(userID string, now time.Time) models.Bookmark {
	return models.Bookmark{
		UserID:           userID,
		TmdbID:           p.TmdbID,
		Meta:             p.Meta.toModel(),
		Groups:           p.Groups,
		FavoriteEpisodes: p.FavoriteEpisodes,
		UpdatedAt:        now,
	}
}

type bookmarkBulkRequest struct {
	Items []bookmarkPayload `json:"items" validate:"required,min=1,dive"`
}

// PutBulk handles PUT /users/{id}/bookmarks: upsert many bookmarks at once,
// used by client-side sync.
func (h BookmarkHandler) PutBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	var req bookmarkBulkRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.now()
	shaped := make([]bookmarkResponse, 0, len(req.Items))
	for _, payload := range req.Items {
		saved, err := h.Bookmarks.Upsert(ctx, payload.toModel(userID, now))
		if err != nil {
			logging.FromContext(ctx).Error("upsert bookmark", "error", err, "userId", userID, "tmdbId", payload.TmdbID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to save bookmarks")
			return
		}
		shaped = append(shaped, shapeBookmark(saved))
	}

	respondJSON(ctx, w, http.StatusOK, shaped)
}

type bookmarkPutRequest struct {
	Meta             mediaMetaPayload `json:"meta" validate:"required"`
	Groups           []string         `json:"group"`
	FavoriteEpisodes []string         `json:"favoriteEpisodes"`
}

// Put handles POST /users/{id}/bookmarks/{tmdbId}.
func (h BookmarkHandler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	var req bookmarkPutRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	bookmark := models.Bookmark{
		UserID:           userID,
		TmdbID:           r.PathValue("tmdbId"),
		Meta:             req.Meta.toModel(),
		Groups:           req.Groups,
		FavoriteEpisodes: req.FavoriteEpisodes,
		UpdatedAt:        h.now(),
	}

	saved, err := h.Bookmarks.Upsert(ctx, bookmark)
	if err != nil {
		logging.FromContext(ctx).Error("upsert bookmark", "error", err, "userId", userID, "tmdbId", bookmark.TmdbID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to save bookmark")
		return
	}

	respondJSON(ctx, w, http.StatusOK, shapeBookmark(saved))
}

// Delete handles DELETE /users/{id}/bookmarks/{tmdbId}.
func (h BookmarkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	tmdbID := r.PathValue("tmdbId")
	if err := h.Bookmarks.Delete(ctx, userID, tmdbID); err != nil {
		logging.FromContext(ctx).Error("delete bookmark", "error", err, "userId", userID, "tmdbId", tmdbID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to delete bookmark")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"tmdbId": tmdbID})
}

// GetGroupOrder handles GET /users/{id}/group-order.
func (h BookmarkHandler) GetGroupOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	order, err := h.Bookmarks.GroupOrder(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("load group order", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load group order")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string][]string{"order": order})
}

type groupOrderRequest struct {
	Order []string `json:"order" validate:"required"`
}

// PutGroupOrder handles PUT /users/{id}/group-order.
func (h BookmarkHandler) PutGroupOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	var req groupOrderRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Bookmarks.SetGroupOrder(ctx, userID, req.Order); err != nil {
		logging.FromContext(ctx).Error("save group order", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to save group order")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string][]string{"order": req.Order})
}
