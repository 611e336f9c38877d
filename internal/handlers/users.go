package handlers

import (
	"errors"
	"net/http"

	"github.com/streamtrack/backend/internal/auth"
	"github.com/streamtrack/backend/internal/logging"
	"github.com/streamtrack/backend/internal/models"
)

// UserHandler implements account endpoints: current user, profile edits,
// session management, ratings, and full account deletion.
type UserHandler struct {
	Users    UserStore
	Sessions SessionManager
	Store    SessionStore

	// Collaborators the account deletion cascade sweeps over.
	Progress  ProgressStore
	History   WatchHistoryStore
	Bookmarks BookmarkStore
	Lists     ListStore
	Settings  SettingsStore
}

// Me handles GET /users/@me.
func (h UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}

	user, err := h.Users.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			respondError(ctx, w, http.StatusUnauthorized, "account no longer exists")
			return
		}
		logging.FromContext(ctx).Error("load current user", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load user")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"user":    shapeUser(user),
		"session": shapeSession(session),
	})
}

type editUserRequest struct {
	Name    *string         `json:"name"`
	Profile *profilePayload `json:"profile"`
}

// Edit handles PATCH /users/{id}.
func (h UserHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	var req editUserRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == nil && req.Profile == nil {
		respondError(ctx, w, http.StatusBadRequest, "nothing to update")
		return
	}

	var profile *models.Profile
	if req.Profile != nil {
		p := req.Profile.toModel()
		profile = &p
	}

	user, err := h.Users.UpdateProfile(ctx, userID, profile, req.Name)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user not found")
			return
		}
		logging.FromContext(ctx).Error("update user profile", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update user")
		return
	}

	respondJSON(ctx, w, http.StatusOK, shapeUser(user))
}

// Delete handles DELETE /users/{id}. Owned records are removed best-effort:
// a failing step is reported but does not roll back the steps before it.
func (h UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	logger := logging.FromContext(ctx)
	var failures []string

	cascade := []struct {
		name string
		fn   func() error
	}{
		{"bookmarks", func() error { _, err := h.Bookmarks.DeleteForUser(ctx, userID); return err }},
		{"progress", func() error { _, err := h.Progress.DeleteForUser(ctx, userID); return err }},
		{"watch_history", func() error { _, err := h.History.DeleteForUser(ctx, userID); return err }},
		{"lists", func() error { _, err := h.Lists.DeleteForUser(ctx, userID); return err }},
		{"settings", func() error { return h.Settings.DeleteForUser(ctx, userID) }},
		{"sessions", func() error { _, err := h.Store.DeleteForUser(ctx, userID); return err }},
	}
	for _, step := range cascade {
		if err := step.fn(); err != nil {
			logger.Error("account deletion step failed", "step", step.name, "error", err, "userId", userID)
			failures = append(failures, step.name)
		}
	}

	if err := h.Users.Delete(ctx, userID); err != nil {
		logger.Error("delete user row", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to delete account")
		return
	}

	payload := map[string]any{"id": userID, "success": len(failures) == 0}
	if len(failures) > 0 {
		payload["failed"] = failures
	}
	respondJSON(ctx, w, http.StatusOK, payload)
}

// ListSessions handles GET /users/{id}/sessions.
func (h UserHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	sessions, err := h.Store.ListForUser(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("list sessions", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	shaped := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		shaped = append(shaped, shapeSession(s))
	}
	respondJSON(ctx, w, http.StatusOK, shaped)
}

// DeleteSession handles DELETE /sessions/{id}. Any of the owner's sessions
// may revoke any other, which is how device logout works.
func (h UserHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}

	targetID := r.PathValue("id")
	target, err := h.Store.Find(ctx, targetID)
	if err != nil {
		if errors.Is(err, auth.ErrSessionNotFound) {
			respondError(ctx, w, http.StatusNotFound, "session not found")
			return
		}
		logging.FromContext(ctx).Error("find session", "error", err, "sessionId", targetID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load session")
		return
	}

	if target.UserID != session.UserID {
		respondError(ctx, w, http.StatusForbidden, "cannot revoke sessions of other users")
		return
	}

	if err := h.Sessions.Revoke(ctx, targetID); err != nil {
		logging.FromContext(ctx).Error("revoke session", "error", err, "sessionId", targetID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to revoke session")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"id": targetID})
}

// ListRatings handles GET /users/{id}/ratings.
func (h UserHandler) ListRatings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("load user ratings", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load ratings")
		return
	}

	ratings := user.Ratings
	if ratings == nil {
		ratings = []models.Rating{}
	}
	respondJSON(ctx, w, http.StatusOK, ratings)
}

type upsertRatingRequest struct {
	TmdbID int     `json:"tmdbId" validate:"required"`
	Type   string  `json:"type" validate:"required,oneof=movie show"`
	Rating float64 `json:"rating" validate:"min=0,max=10"`
}

// UpsertRating handles POST /users/{id}/ratings. Ratings are keyed by
// (tmdbId, type); posting an existing key replaces the score.
func (h UserHandler) UpsertRating(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	var req upsertRatingRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("load user for rating", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to save rating")
		return
	}

	ratings := user.Ratings
	replaced := false
	for i, existing := range ratings {
		if existing.TmdbID == req.TmdbID && existing.Type == req.Type {
			ratings[i].Rating = req.Rating
			replaced = true
			break
		}
	}
	if !replaced {
		ratings = append(ratings, models.Rating{TmdbID: req.TmdbID, Type: req.Type, Rating: req.Rating})
	}

	if err := h.Users.ReplaceRatings(ctx, userID, ratings); err != nil {
		logging.FromContext(ctx).Error("replace ratings", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to save rating")
		return
	}

	respondJSON(ctx, w, http.StatusOK, ratings)
}
