package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/streamtrack/backend/internal/logging"
	"github.com/streamtrack/backend/internal/models"
	"github.com/streamtrack/backend/internal/progress"
)

// ProgressHandler implements the playback progress endpoints.
type ProgressHandler struct {
	Sessions   SessionManager
	Progress   ProgressStore
	Reconciler ProgressReconciler
	NowFunc    Clock
}

func (h ProgressHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type mediaMetaPayload struct {
	Title  string `json:"title" validate:"required"`
	Year   int    `json:"year"`
	Poster string `json:"poster"`
	Type   string `json:"type" validate:"required,oneof=movie show"`
}

func (m mediaMetaPayload) toModel() models.MediaMeta {
	return models.MediaMeta{Title: m.Title, Year: m.Year, Poster: m.Poster, Type: m.Type}
}

type progressPutRequest struct {
	Meta          mediaMetaPayload `json:"meta" validate:"required"`
	Duration      int64            `json:"duration" validate:"min=0"`
	Watched       int64            `json:"watched" validate:"min=0"`
	SeasonID      *string          `json:"seasonId"`
	EpisodeID     *string          `json:"episodeId"`
	SeasonNumber  *int             `json:"seasonNumber"`
	EpisodeNumber *int             `json:"episodeNumber"`
	UpdatedAt     *time.Time       `json:"updatedAt"`
}

func (h ProgressHandler) buildItem(userID, tmdbID string, req progressPutRequest) models.ProgressItem {
	item := models.ProgressItem{
		ID:            uuid.NewString(),
		UserID:        userID,
		TmdbID:        tmdbID,
		SeasonID:      req.SeasonID,
		EpisodeID:     req.EpisodeID,
		SeasonNumber:  req.SeasonNumber,
		EpisodeNumber: req.EpisodeNumber,
		Duration:      req.Duration,
		Watched:       req.Watched,
		Meta:          req.Meta.toModel(),
		UpdatedAt:     progress.ClampTimestamp(req.UpdatedAt, h.now()),
	}
	return progress.NormalizeIdentity(item)
}

// List handles GET /users/{id}/progress.
func (h ProgressHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	items, err := h.Progress.ListForUser(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("list progress", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list progress")
		return
	}

	shaped := make([]progressItemResponse, 0, len(items))
	for _, item := range items {
		shaped = append(shaped, shapeProgressItem(item))
	}
	respondJSON(ctx, w, http.StatusOK, shaped)
}

// Put handles PUT /users/{id}/progress/{tmdbId}. Samples that fail the
// acceptability rules are not persisted, but the response still echoes the
// submitted values so optimistic client state stays coherent.
func (h ProgressHandler) Put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	var req progressPutRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	item := h.buildItem(userID, r.PathValue("tmdbId"), req)

	save, err := h.Reconciler.ShouldSave(ctx, item)
	if err != nil {
		logging.FromContext(ctx).Error("evaluate progress sample", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to save progress")
		return
	}
	if !save {
		echo := item
		echo.ID = ""
		respondJSON(ctx, w, http.StatusOK, shapeProgressItem(echo))
		return
	}

	saved, err := h.Progress.Upsert(ctx, item)
	if err != nil {
		logging.FromContext(ctx).Error("upsert progress", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to save progress")
		return
	}

	respondJSON(ctx, w, http.StatusOK, shapeProgressItem(saved))
}

type progressDeleteRequest struct {
	SeasonID  *string `json:"seasonId"`
	EpisodeID *string `json:"episodeId"`
}

// Delete handles DELETE /users/{id}/progress/{tmdbId}. Season and episode
// filters in the body narrow which rows go.
func (h ProgressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	// The body is optional; an empty body deletes every row for the title.
	var req progressDeleteRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
	}

	tmdbID := r.PathValue("tmdbId")
	count, err := h.Progress.Delete(ctx, userID, tmdbID, req.SeasonID, req.EpisodeID)
	if err != nil {
		logging.FromContext(ctx).Error("delete progress", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to delete progress")
		return
	}

	payload := map[string]any{"count": count, "tmdbId": tmdbID}
	if req.SeasonID != nil {
		payload["seasonId"] = *req.SeasonID
	}
	if req.EpisodeID != nil {
		payload["episodeId"] = *req.EpisodeID
	}
	respondJSON(ctx, w, http.StatusOK, payload)
}

// Cleanup handles DELETE /users/{id}/progress/cleanup: prune rows the
// acceptability rules consider noise. Running it twice deletes nothing the
// second time.
func (h ProgressHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	items, err := h.Progress.ListForUser(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("list progress for cleanup", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to clean up progress")
		return
	}

	doomed := progress.CleanupPlan(items)
	var deleted int64
	if len(doomed) > 0 {
		deleted, err = h.Progress.DeleteByIDs(ctx, userID, doomed)
		if err != nil {
			logging.FromContext(ctx).Error("delete progress noise", "error", err, "userId", userID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to clean up progress")
			return
		}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"deletedCount": deleted,
		"message":      fmt.Sprintf("removed %d stale progress items", deleted),
	})
}

type progressImportItem struct {
	TmdbID        string           `json:"tmdbId" validate:"required"`
	Meta          mediaMetaPayload `json:"meta" validate:"required"`
	Duration      int64            `json:"duration" validate:"min=0"`
	Watched       int64            `json:"watched" validate:"min=0"`
	SeasonID      *string          `json:"seasonId"`
	EpisodeID     *string          `json:"episodeId"`
	SeasonNumber  *int             `json:"seasonNumber"`
	EpisodeNumber *int             `json:"episodeNumber"`
	UpdatedAt     *time.Time       `json:"updatedAt"`
}

type progressImportRequest struct {
	Items []progressImportItem `json:"items" validate:"required,min=1,dive"`
}

// Import handles PUT /users/{id}/progress/import: a full-fidelity migration
// merge. Matching rows only ever advance (watched never regresses); unmatched
// candidates are inserted without the acceptability filter.
func (h ProgressHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	var req progressImportRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.now()
	candidates := make([]models.ProgressItem, 0, len(req.Items))
	for _, in := range req.Items {
		item := models.ProgressItem{
			ID:            uuid.NewString(),
			UserID:        userID,
			TmdbID:        in.TmdbID,
			SeasonID:      in.SeasonID,
			EpisodeID:     in.EpisodeID,
			SeasonNumber:  in.SeasonNumber,
			EpisodeNumber: in.EpisodeNumber,
			Duration:      in.Duration,
			Watched:       in.Watched,
			Meta:          in.Meta.toModel(),
			UpdatedAt:     progress.ClampTimestamp(in.UpdatedAt, now),
		}
		candidates = append(candidates, progress.NormalizeIdentity(item))
	}

	existing, err := h.Progress.ListForUser(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("list progress for import", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to import progress")
		return
	}

	for _, item := range progress.MergeImport(existing, candidates) {
		if _, err := h.Progress.Upsert(ctx, item); err != nil {
			logging.FromContext(ctx).Error("upsert imported progress", "error", err, "userId", userID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to import progress")
			return
		}
	}

	merged, err := h.Progress.ListForUser(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("list progress after import", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to import progress")
		return
	}

	shaped := make([]progressItemResponse, 0, len(merged))
	for _, item := range merged {
		shaped = append(shaped, shapeProgressItem(item))
	}
	respondJSON(ctx, w, http.StatusOK, shaped)
}
