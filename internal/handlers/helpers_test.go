package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/streamtrack/backend/internal/auth"
	"github.com/streamtrack/backend/internal/models"
	"github.com/streamtrack/backend/internal/repositories"
)

const testToken = "test-session-token"

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testSession(userID string) models.Session {
	return models.Session{
		ID:         "session-" + userID,
		UserID:     userID,
		Device:     "laptop",
		CreatedAt:  testNow.Add(-time.Hour),
		AccessedAt: testNow.Add(-time.Minute),
		ExpiresAt:  testNow.Add(24 * time.Hour),
	}
}

type fakeSessionManager struct {
	session models.Session
	revoked []string
}

func (f *fakeSessionManager) Current(_ context.Context, token string) (models.Session, error) {
	if token != testToken || f.session.ID == "" {
		return models.Session{}, auth.ErrTokenInvalid
	}
	return f.session, nil
}

func (f *fakeSessionManager) Revoke(_ context.Context, id string) error {
	f.revoked = append(f.revoked, id)
	return nil
}

func sessionManagerFor(userID string) *fakeSessionManager {
	return &fakeSessionManager{session: testSession(userID)}
}

func newRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func newAuthedRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	req := newRequest(t, method, target, body)
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response body %q: %v", rec.Body.String(), err)
	}
}

func assertErrorResponse(t *testing.T, rec *httptest.ResponseRecorder, status int) string {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %q)", rec.Code, status, rec.Body.String())
	}
	var payload struct {
		Error string `json:"error"`
	}
	decodeResponse(t, rec, &payload)
	if payload.Error == "" {
		t.Fatal("expected an error message in the response")
	}
	return payload.Error
}

type fakeProgressStore struct {
	items   []models.ProgressItem
	listErr error
}

func (f *fakeProgressStore) Upsert(_ context.Context, item models.ProgressItem) (models.ProgressItem, error) {
	for i, existing := range f.items {
		if existing.UserID == item.UserID && existing.SameIdentity(item) {
			item.ID = existing.ID
			f.items[i] = item
			return item, nil
		}
	}
	f.items = append(f.items, item)
	return item, nil
}

func (f *fakeProgressStore) ListForUser(_ context.Context, userID string) ([]models.ProgressItem, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var items []models.ProgressItem
	for _, item := range f.items {
		if item.UserID == userID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeProgressStore) Delete(_ context.Context, userID, tmdbID string, seasonID, episodeID *string) (int64, error) {
	var kept []models.ProgressItem
	var count int64
	for _, item := range f.items {
		match := item.UserID == userID && item.TmdbID == tmdbID
		if match && seasonID != nil {
			match = item.SeasonID != nil && *item.SeasonID == *seasonID
		}
		if match && episodeID != nil {
			match = item.EpisodeID != nil && *item.EpisodeID == *episodeID
		}
		if match {
			count++
			continue
		}
		kept = append(kept, item)
	}
	f.items = kept
	return count, nil
}

func (f *fakeProgressStore) DeleteByIDs(_ context.Context, userID string, ids []string) (int64, error) {
	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}
	var kept []models.ProgressItem
	var count int64
	for _, item := range f.items {
		if item.UserID == userID && doomed[item.ID] {
			count++
			continue
		}
		kept = append(kept, item)
	}
	f.items = kept
	return count, nil
}

func (f *fakeProgressStore) DeleteForUser(_ context.Context, userID string) (int64, error) {
	var kept []models.ProgressItem
	var count int64
	for _, item := range f.items {
		if item.UserID == userID {
			count++
			continue
		}
		kept = append(kept, item)
	}
	f.items = kept
	return count, nil
}

// reconcilerFunc adapts a closure to ProgressReconciler.
type reconcilerFunc func(ctx context.Context, item models.ProgressItem) (bool, error)

func (f reconcilerFunc) ShouldSave(ctx context.Context, item models.ProgressItem) (bool, error) {
	return f(ctx, item)
}

func saveAll(context.Context, models.ProgressItem) (bool, error)  { return true, nil }
func saveNone(context.Context, models.ProgressItem) (bool, error) { return false, nil }

type fakeWatchHistoryStore struct {
	items []models.WatchHistoryItem
}

func sameHistoryIdentity(a, b models.WatchHistoryItem) bool {
	sameOptional := func(x, y *string) bool {
		if x == nil || y == nil {
			return x == nil && y == nil
		}
		return *x == *y
	}
	return a.UserID == b.UserID && a.TmdbID == b.TmdbID &&
		sameOptional(a.SeasonID, b.SeasonID) && sameOptional(a.EpisodeID, b.EpisodeID)
}

func (f *fakeWatchHistoryStore) Upsert(_ context.Context, item models.WatchHistoryItem) (models.WatchHistoryItem, error) {
	for i, existing := range f.items {
		if sameHistoryIdentity(existing, item) {
			item.ID = existing.ID
			f.items[i] = item
			return item, nil
		}
	}
	f.items = append(f.items, item)
	return item, nil
}

func (f *fakeWatchHistoryStore) ListForUser(_ context.Context, userID string) ([]models.WatchHistoryItem, error) {
	var items []models.WatchHistoryItem
	for _, item := range f.items {
		if item.UserID == userID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeWatchHistoryStore) Delete(_ context.Context, userID, tmdbID string, seasonID, episodeID *string) (int64, error) {
	var kept []models.WatchHistoryItem
	var count int64
	for _, item := range f.items {
		match := item.UserID == userID && item.TmdbID == tmdbID
		if match && seasonID != nil {
			match = item.SeasonID != nil && *item.SeasonID == *seasonID
		}
		if match && episodeID != nil {
			match = item.EpisodeID != nil && *item.EpisodeID == *episodeID
		}
		if match {
			count++
			continue
		}
		kept = append(kept, item)
	}
	f.items = kept
	return count, nil
}

func (f *fakeWatchHistoryStore) DeleteForUser(_ context.Context, userID string) (int64, error) {
	var kept []models.WatchHistoryItem
	var count int64
	for _, item := range f.items {
		if item.UserID == userID {
			count++
			continue
		}
		kept = append(kept, item)
	}
	f.items = kept
	return count, nil
}

type fakeBookmarkStore struct {
	bookmarks []models.Bookmark
	order     map[string][]string
}

func newFakeBookmarkStore() *fakeBookmarkStore {
	return &fakeBookmarkStore{order: make(map[string][]string)}
}

func (f *fakeBookmarkStore) Upsert(_ context.Context, bookmark models.Bookmark) (models.Bookmark, error) {
	for i, existing := range f.bookmarks {
		if existing.UserID == bookmark.UserID && existing.TmdbID == bookmark.TmdbID {
			f.bookmarks[i] = bookmark
			return bookmark, nil
		}
	}
	f.bookmarks = append(f.bookmarks, bookmark)
	return bookmark, nil
}

func (f *fakeBookmarkStore) ListForUser(_ context.Context, userID string) ([]models.Bookmark, error) {
	var bookmarks []models.Bookmark
	for _, bookmark := range f.bookmarks {
		if bookmark.UserID == userID {
			bookmarks = append(bookmarks, bookmark)
		}
	}
	return bookmarks, nil
}

func (f *fakeBookmarkStore) Delete(_ context.Context, userID, tmdbID string) error {
	var kept []models.Bookmark
	for _, bookmark := range f.bookmarks {
		if bookmark.UserID == userID && bookmark.TmdbID == tmdbID {
			continue
		}
		kept = append(kept, bookmark)
	}
	f.bookmarks = kept
	return nil
}

func (f *fakeBookmarkStore) DeleteForUser(_ context.Context, userID string) (int64, error) {
	var kept []models.Bookmark
	var count int64
	for _, bookmark := range f.bookmarks {
		if bookmark.UserID == userID {
			count++
			continue
		}
		kept = append(kept, bookmark)
	}
	f.bookmarks = kept
	delete(f.order, userID)
	return count, nil
}

func (f *fakeBookmarkStore) GroupOrder(_ context.Context, userID string) ([]string, error) {
	order, ok := f.order[userID]
	if !ok {
		return []string{}, nil
	}
	return order, nil
}

func (f *fakeBookmarkStore) SetGroupOrder(_ context.Context, userID string, order []string) error {
	f.order[userID] = order
	return nil
}

type fakeListStore struct {
	lists map[string]models.List
}

func newFakeListStore() *fakeListStore {
	return &fakeListStore{lists: make(map[string]models.List)}
}

func (f *fakeListStore) Create(_ context.Context, list models.List) (models.List, error) {
	f.lists[list.ID] = list
	return list, nil
}

func (f *fakeListStore) ListForUser(_ context.Context, userID string) ([]models.List, error) {
	var lists []models.List
	for _, list := range f.lists {
		if list.UserID == userID {
			list.Items = nil
			lists = append(lists, list)
		}
	}
	return lists, nil
}

func (f *fakeListStore) FindByID(_ context.Context, listID string) (models.List, error) {
	list, ok := f.lists[listID]
	if !ok {
		return models.List{}, repositories.ErrNotFound
	}
	return list, nil
}

func (f *fakeListStore) UpdateMeta(_ context.Context, listID string, name, description *string, public *bool) (models.List, error) {
	list, ok := f.lists[listID]
	if !ok {
		return models.List{}, repositories.ErrNotFound
	}
	if name != nil {
		list.Name = *name
	}
	if description != nil {
		list.Description = *description
	}
	if public != nil {
		list.Public = *public
	}
	f.lists[listID] = list
	return list, nil
}

func (f *fakeListStore) AddItems(_ context.Context, listID string, items []models.ListItem) error {
	list, ok := f.lists[listID]
	if !ok {
		return repositories.ErrNotFound
	}
next:
	for _, item := range items {
		for _, existing := range list.Items {
			if existing.TmdbID == item.TmdbID && existing.Type == item.Type {
				continue next
			}
		}
		list.Items = append(list.Items, item)
	}
	f.lists[listID] = list
	return nil
}

func (f *fakeListStore) RemoveItems(_ context.Context, listID string, itemIDs []string) (int64, error) {
	list, ok := f.lists[listID]
	if !ok {
		return 0, repositories.ErrNotFound
	}
	doomed := make(map[string]bool, len(itemIDs))
	for _, id := range itemIDs {
		doomed[id] = true
	}
	var kept []models.ListItem
	var count int64
	for _, item := range list.Items {
		if doomed[item.ID] {
			count++
			continue
		}
		kept = append(kept, item)
	}
	list.Items = kept
	f.lists[listID] = list
	return count, nil
}

func (f *fakeListStore) Delete(_ context.Context, listID string) error {
	if _, ok := f.lists[listID]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.lists, listID)
	return nil
}

func (f *fakeListStore) DeleteForUser(_ context.Context, userID string) (int64, error) {
	var count int64
	for id, list := range f.lists {
		if list.UserID == userID {
			delete(f.lists, id)
			count++
		}
	}
	return count, nil
}

type fakeSettingsStore struct {
	settings map[string]models.UserSettings
}

func newFakeSettingsStore() *fakeSettingsStore {
	return &fakeSettingsStore{settings: make(map[string]models.UserSettings)}
}

func (f *fakeSettingsStore) Get(_ context.Context, userID string) (models.UserSettings, error) {
	settings, ok := f.settings[userID]
	if !ok {
		return models.UserSettings{}, repositories.ErrNotFound
	}
	return settings, nil
}

func (f *fakeSettingsStore) Upsert(_ context.Context, settings models.UserSettings) (models.UserSettings, error) {
	f.settings[settings.UserID] = settings
	return settings, nil
}

func (f *fakeSettingsStore) DeleteForUser(_ context.Context, userID string) error {
	delete(f.settings, userID)
	return nil
}

type fakeSessionStore struct {
	sessions map[string]models.Session
}

func newFakeSessionStore(sessions ...models.Session) *fakeSessionStore {
	store := &fakeSessionStore{sessions: make(map[string]models.Session)}
	for _, session := range sessions {
		store.sessions[session.ID] = session
	}
	return store
}

func (f *fakeSessionStore) Find(_ context.Context, id string) (models.Session, error) {
	session, ok := f.sessions[id]
	if !ok {
		return models.Session{}, auth.ErrSessionNotFound
	}
	return session, nil
}

func (f *fakeSessionStore) ListForUser(_ context.Context, userID string) ([]models.Session, error) {
	var sessions []models.Session
	for _, session := range f.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (f *fakeSessionStore) DeleteForUser(_ context.Context, userID string) (int64, error) {
	var count int64
	for id, session := range f.sessions {
		if session.UserID == userID {
			delete(f.sessions, id)
			count++
		}
	}
	return count, nil
}

type fakeUserStore struct {
	users   map[string]models.User
	deleted []string
}

func newFakeUserStore(users ...models.User) *fakeUserStore {
	store := &fakeUserStore{users: make(map[string]models.User)}
	for _, user := range users {
		store.users[user.ID] = user
	}
	return store
}

func (f *fakeUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return models.User{}, auth.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserStore) UpdateProfile(_ context.Context, userID string, profile *models.Profile, nickname *string) (models.User, error) {
	user, ok := f.users[userID]
	if !ok {
		return models.User{}, auth.ErrUserNotFound
	}
	if profile != nil {
		user.Profile = *profile
	}
	if nickname != nil {
		user.Nickname = *nickname
	}
	f.users[userID] = user
	return user, nil
}

func (f *fakeUserStore) ReplaceRatings(_ context.Context, userID string, ratings []models.Rating) error {
	user, ok := f.users[userID]
	if !ok {
		return auth.ErrUserNotFound
	}
	user.Ratings = ratings
	f.users[userID] = user
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, userID string) error {
	if _, ok := f.users[userID]; !ok {
		return auth.ErrUserNotFound
	}
	delete(f.users, userID)
	f.deleted = append(f.deleted, userID)
	return nil
}

func (f *fakeUserStore) Count(_ context.Context) (int64, error) {
	return int64(len(f.users)), nil
}

type fakeMetricsRecorder struct {
	userCount      int64
	captchaSolves  []bool
	providerStats  []string
	watchEventIDs  []string
	watchSuccesses []bool
}

func (f *fakeMetricsRecorder) SetUserCount(count int64) { f.userCount = count }

func (f *fakeMetricsRecorder) RecordCaptchaSolve(success bool) {
	f.captchaSolves = append(f.captchaSolves, success)
}

func (f *fakeMetricsRecorder) RecordProviderStatus(providerID, status string) {
	f.providerStats = append(f.providerStats, providerID+"/"+status)
}

func (f *fakeMetricsRecorder) RecordWatchEvent(tmdbFullID, providerID string, success bool) {
	f.watchEventIDs = append(f.watchEventIDs, tmdbFullID)
	f.watchSuccesses = append(f.watchSuccesses, success)
}
