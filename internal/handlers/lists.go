package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/streamtrack/backend/internal/logging"
	"github.com/streamtrack/backend/internal/models"
	"github.com/streamtrack/backend/internal/repositories"
)

// ListHandler implements user-curated list endpoints.
type ListHandler struct {
	Sessions SessionManager
	Lists    ListStore
}

// List handles GET /users/{id}/lists.
func (h ListHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	lists, err := h.Lists.ListForUser(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("list lists", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to list lists")
		return
	}

	shaped := make([]listResponse, 0, len(lists))
	for _, list := range lists {
		shaped = append(shaped, shapeList(list))
	}
	respondJSON(ctx, w, http.StatusOK, shaped)
}

type createListRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Public      bool   `json:"public"`
}

// Create handles POST /users/{id}/lists.
func (h ListHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	var req createListRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.Lists.Create(ctx, models.List{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		Public:      req.Public,
	})
	if err != nil {
		logging.FromContext(ctx).Error("create list", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create list")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, shapeList(list))
}

type listItemPayload struct {
	TmdbID string `json:"tmdbId" validate:"required"`
	Type   string `json:"type" validate:"required,oneof=movie show"`
}

type updateListRequest struct {
	Name        *string           `json:"name" validate:"omitempty,max=200"`
	Description *string           `json:"description" validate:"omitempty,max=2000"`
	Public      *bool             `json:"public"`
	AddItems    []listItemPayload `json:"addItems" validate:"omitempty,dive"`
	RemoveItems []string          `json:"removeItems"`
}

// Update handles PATCH /users/{id}/lists/{listId}: metadata changes plus item
// additions and removals in one request.
func (h ListHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	listID := r.PathValue("listId")
	list, err := h.Lists.FindByID(ctx, listID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "list not found")
			return
		}
		logging.FromContext(ctx).Error("find list", "error", err, "listId", listID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load list")
		return
	}
	if list.UserID != userID {
		respondError(ctx, w, http.StatusForbidden, "cannot modify lists of other users")
		return
	}

	var req updateListRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Name != nil || req.Description != nil || req.Public != nil {
		if _, err := h.Lists.UpdateMeta(ctx, listID, req.Name, req.Description, req.Public); err != nil {
			logging.FromContext(ctx).Error("update list meta", "error", err, "listId", listID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to update list")
			return
		}
	}

	if len(req.AddItems) > 0 {
		items := make([]models.ListItem, 0, len(req.AddItems))
		for _, in := range req.AddItems {
			items = append(items, models.ListItem{ID: uuid.NewString(), TmdbID: in.TmdbID, Type: in.Type})
		}
		if err := h.Lists.AddItems(ctx, listID, items); err != nil {
			logging.FromContext(ctx).Error("add list items", "error", err, "listId", listID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to update list")
			return
		}
	}

	if len(req.RemoveItems) > 0 {
		if _, err := h.Lists.RemoveItems(ctx, listID, req.RemoveItems); err != nil {
			logging.FromContext(ctx).Error("remove list items", "error", err, "listId", listID)
			respondError(ctx, w, http.StatusInternalServerError, "failed to update list")
			return
		}
	}

	updated, err := h.Lists.FindByID(ctx, listID)
	if err != nil {
		logging.FromContext(ctx).Error("reload list", "error", err, "listId", listID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load list")
		return
	}

	respondJSON(ctx, w, http.StatusOK, shapeList(updated))
}

// Delete handles DELETE /users/{id}/lists/{listId}.
func (h ListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	session, ok := requireSession(ctx, w, r, h.Sessions)
	if !ok {
		return
	}
	userID := resolveUserID(r, session)
	if !requireOwner(ctx, w, session, userID) {
		return
	}

	listID := r.PathValue("listId")
	list, err := h.Lists.FindByID(ctx, listID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "list not found")
			return
		}
		logging.FromContext(ctx).Error("find list", "error", err, "listId", listID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load list")
		return
	}
	if list.UserID != userID {
		respondError(ctx, w, http.StatusForbidden, "cannot delete lists of other users")
		return
	}

	if err := h.Lists.Delete(ctx, listID); err != nil {
		logging.FromContext(ctx).Error("delete list", "error", err, "listId", listID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to delete list")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"id": listID})
}

// Get handles GET /lists/{id}: a public read that needs no session. Private
// lists are only visible to their owner.
func (h ListHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	listID := r.PathValue("id")
	list, err := h.Lists.FindByID(ctx, listID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "list not found")
			return
		}
		logging.FromContext(ctx).Error("find list", "error", err, "listId", listID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load list")
		return
	}

	if !list.Public {
		token, ok := bearerToken(r)
		if !ok {
			respondError(ctx, w, http.StatusForbidden, "list is private")
			return
		}
		session, err := h.Sessions.Current(ctx, token)
		if err != nil || session.UserID != list.UserID {
			respondError(ctx, w, http.StatusForbidden, "list is private")
			return
		}
	}

	respondJSON(ctx, w, http.StatusOK, shapeList(list))
}
