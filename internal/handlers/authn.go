package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/streamtrack/backend/internal/logging"
	"github.com/streamtrack/backend/internal/models"
)

// bearerToken extracts the session token from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// requireSession resolves the caller's session from the bearer token,
// responding 401 itself when that fails.
func requireSession(ctx context.Context, w http.ResponseWriter, r *http.Request, sessions SessionManager) (models.Session, bool) {
	token, ok := bearerToken(r)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "missing session token")
		return models.Session{}, false
	}

	session, err := sessions.Current(ctx, token)
	if err != nil {
		logging.FromContext(ctx).Warn("session resolution failed", "error", err)
		respondError(ctx, w, http.StatusUnauthorized, "invalid session")
		return models.Session{}, false
	}

	return session, true
}

// resolveUserID expands the "@me" alias to the session owner.
func resolveUserID(r *http.Request, session models.Session) string {
	id := r.PathValue("id")
	if id == "@me" {
		return session.UserID
	}
	return id
}

// requireOwner enforces that the session owner is the addressed user,
// responding 403 itself when not.
func requireOwner(ctx context.Context, w http.ResponseWriter, session models.Session, userID string) bool {
	if session.UserID != userID {
		respondError(ctx, w, http.StatusForbidden, "cannot modify user other than self")
		return false
	}
	return true
}
