package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamtrack/backend/internal/auth"
	"github.com/streamtrack/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateFindAndUpdate(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "test-key-alice")

	dup := user
	dup.ID = uuid.NewString()
	if err := repo.Create(ctx, dup); !errors.Is(err, auth.ErrUserExists) {
		t.Fatalf("expected ErrUserExists when reusing a public key, got %v", err)
	}

	fetched, err := repo.FindByPublicKey(ctx, user.PublicKey)
	if err != nil {
		t.Fatalf("find by public key: %v", err)
	}
	if fetched.ID != user.ID || fetched.Nickname != user.Nickname || fetched.Namespace != user.Namespace {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}
	if fetched.Profile != user.Profile {
		t.Fatalf("expected profile to round-trip, got %+v", fetched.Profile)
	}

	nickname := "RenamedOtter42"
	profile := models.Profile{Icon: "cat", ColorA: "#111111", ColorB: "#222222"}
	updated, err := repo.UpdateProfile(ctx, user.ID, &profile, &nickname)
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Nickname != nickname || updated.Profile != profile {
		t.Fatalf("expected profile changes to persist, got %+v", updated)
	}

	// A nil profile leaves the stored one alone.
	updated, err = repo.UpdateProfile(ctx, user.ID, nil, nil)
	if err != nil {
		t.Fatalf("update profile with no changes: %v", err)
	}
	if updated.Nickname != nickname || updated.Profile != profile {
		t.Fatalf("expected untouched fields to survive, got %+v", updated)
	}

	ratings := []models.Rating{{TmdbID: 603, Type: models.MediaTypeMovie, Rating: 4.5}}
	if err := repo.ReplaceRatings(ctx, user.ID, ratings); err != nil {
		t.Fatalf("replace ratings: %v", err)
	}

	fetched, err = repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if len(fetched.Ratings) != 1 || fetched.Ratings[0].TmdbID != 603 {
		t.Fatalf("expected ratings to persist, got %+v", fetched.Ratings)
	}

	loginAt := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)
	if err := repo.RecordLogin(ctx, user.ID, loginAt); err != nil {
		t.Fatalf("record login: %v", err)
	}

	if err := repo.RecordLogin(ctx, uuid.NewString(), loginAt); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound for unknown user, got %v", err)
	}

	if err := repo.Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := repo.FindByID(ctx, user.ID); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound after delete, got %v", err)
	}
}

func TestPostgresChallengeStore_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	store := NewPostgresChallengeStore(testPool)
	challenge := auth.Challenge{
		Code:      uuid.NewString(),
		Flow:      auth.FlowRegistration,
		KeyKind:   auth.KeyKindMnemonic,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(10 * time.Minute),
	}

	if err := store.Save(ctx, challenge); err != nil {
		t.Fatalf("save challenge: %v", err)
	}

	loaded, err := store.Find(ctx, challenge.Code)
	if err != nil {
		t.Fatalf("find challenge: %v", err)
	}
	if loaded.Flow != challenge.Flow || loaded.Consumed {
		t.Fatalf("unexpected challenge loaded: %+v", loaded)
	}

	ok, err := store.Consume(ctx, challenge.Code)
	if err != nil {
		t.Fatalf("consume challenge: %v", err)
	}
	if !ok {
		t.Fatalf("expected first consume to win")
	}

	ok, err = store.Consume(ctx, challenge.Code)
	if err != nil {
		t.Fatalf("consume challenge twice: %v", err)
	}
	if ok {
		t.Fatalf("expected second consume to lose")
	}

	loaded, err = store.Find(ctx, challenge.Code)
	if err != nil {
		t.Fatalf("find consumed challenge: %v", err)
	}
	if !loaded.Consumed {
		t.Fatalf("expected challenge to be marked consumed")
	}

	if _, err := store.Find(ctx, "missing-code"); !errors.Is(err, auth.ErrChallengeNotFound) {
		t.Fatalf("expected ErrChallengeNotFound, got %v", err)
	}

	pruned, err := store.DeleteExpired(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("delete expired challenges: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned challenge, got %d", pruned)
	}
}

func TestPostgresSessionStore_SaveFindAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, userRepo, "test-key-sessions")

	store := NewPostgresSessionStore(testPool)
	now := time.Now().UTC().Truncate(time.Millisecond)
	session := models.Session{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		Device:     "Living Room TV",
		UserAgent:  "test-agent",
		CreatedAt:  now,
		AccessedAt: now,
		ExpiresAt:  now.Add(24 * time.Hour),
	}

	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	loaded, err := store.Find(ctx, session.ID)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if loaded.UserID != user.ID || loaded.Device != session.Device {
		t.Fatalf("unexpected session loaded: %+v", loaded)
	}

	touchedAt := now.Add(time.Hour)
	if err := store.Touch(ctx, session.ID, touchedAt); err != nil {
		t.Fatalf("touch session: %v", err)
	}

	loaded, err = store.Find(ctx, session.ID)
	if err != nil {
		t.Fatalf("find touched session: %v", err)
	}
	if !timesClose(loaded.AccessedAt, touchedAt, time.Millisecond) {
		t.Fatalf("expected accessed_at to advance, got %v", loaded.AccessedAt)
	}

	second := session
	second.ID = uuid.NewString()
	second.CreatedAt = now.Add(time.Minute)
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("save second session: %v", err)
	}

	sessions, err := store.ListForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != second.ID {
		t.Fatalf("expected newest-first sessions, got %+v", sessions)
	}

	if err := store.Delete(ctx, session.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if err := store.Delete(ctx, session.ID); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound deleting twice, got %v", err)
	}

	removed, err := store.DeleteForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("delete sessions for user: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed session, got %d", removed)
	}
}

func TestPostgresProgressRepository_UpsertAndFilters(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, userRepo, "test-key-progress")

	repo := NewPostgresProgressRepository(testPool)

	movie := testProgressItem(user.ID, "550", nil, nil)
	movie.Watched = 100
	saved, err := repo.Upsert(ctx, movie)
	if err != nil {
		t.Fatalf("upsert movie: %v", err)
	}
	if saved.SeasonID != nil || saved.EpisodeID != nil {
		t.Fatalf("expected movie identity to stay empty, got %+v", saved)
	}

	// Same identity again keeps the original row.
	movie.ID = uuid.NewString()
	movie.Watched = 900
	again, err := repo.Upsert(ctx, movie)
	if err != nil {
		t.Fatalf("upsert movie again: %v", err)
	}
	if again.ID != saved.ID {
		t.Fatalf("expected upsert to reuse row %s, got %s", saved.ID, again.ID)
	}
	if again.Watched != 900 {
		t.Fatalf("expected watched position to update, got %d", again.Watched)
	}

	season := "s1"
	ep1, ep2 := "e1", "e2"
	first := testProgressItem(user.ID, "1399", &season, &ep1)
	second := testProgressItem(user.ID, "1399", &season, &ep2)
	for _, item := range []models.ProgressItem{first, second} {
		if _, err := repo.Upsert(ctx, item); err != nil {
			t.Fatalf("upsert episode: %v", err)
		}
	}

	siblings, err := repo.ListSeasonSiblings(ctx, user.ID, "1399", season, &ep1)
	if err != nil {
		t.Fatalf("list season siblings: %v", err)
	}
	if len(siblings) != 1 || *siblings[0].EpisodeID != ep2 {
		t.Fatalf("expected only the other episode, got %+v", siblings)
	}

	items, err := repo.ListForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list progress: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 progress items, got %d", len(items))
	}

	removed, err := repo.Delete(ctx, user.ID, "1399", &season, &ep1)
	if err != nil {
		t.Fatalf("delete one episode: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed row, got %d", removed)
	}

	removed, err = repo.Delete(ctx, user.ID, "1399", nil, nil)
	if err != nil {
		t.Fatalf("delete remaining title rows: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 remaining row removed, got %d", removed)
	}

	removed, err = repo.DeleteByIDs(ctx, user.ID, []string{saved.ID})
	if err != nil {
		t.Fatalf("delete by ids: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected movie row removed, got %d", removed)
	}
}

func TestPostgresWatchHistoryRepository_UpsertListAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, userRepo, "test-key-history")

	repo := NewPostgresWatchHistoryRepository(testPool)
	now := time.Now().UTC().Truncate(time.Millisecond)

	older := models.WatchHistoryItem{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TmdbID:    "550",
		Duration:  7260,
		Watched:   7200,
		WatchedAt: now.Add(-time.Hour),
		Completed: true,
		Meta:      models.MediaMeta{Title: "Fight Club", Type: models.MediaTypeMovie},
		UpdatedAt: now,
	}
	season, episode := "s1", "e1"
	newer := models.WatchHistoryItem{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TmdbID:    "1399",
		SeasonID:  &season,
		EpisodeID: &episode,
		Duration:  3600,
		Watched:   1800,
		WatchedAt: now,
		Meta:      models.MediaMeta{Title: "Game of Thrones", Type: models.MediaTypeShow},
		UpdatedAt: now,
	}

	for _, item := range []models.WatchHistoryItem{older, newer} {
		if _, err := repo.Upsert(ctx, item); err != nil {
			t.Fatalf("upsert watch event: %v", err)
		}
	}

	items, err := repo.ListForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list watch history: %v", err)
	}
	if len(items) != 2 || items[0].TmdbID != "1399" {
		t.Fatalf("expected newest-first events, got %+v", items)
	}
	if items[0].SeasonID == nil || *items[0].SeasonID != season {
		t.Fatalf("expected episode identity to round-trip, got %+v", items[0])
	}
	if items[1].SeasonID != nil {
		t.Fatalf("expected movie identity to stay empty, got %+v", items[1])
	}

	removed, err := repo.Delete(ctx, user.ID, "1399", &season, nil)
	if err != nil {
		t.Fatalf("delete season events: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed event, got %d", removed)
	}

	removed, err = repo.DeleteForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("delete history for user: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 remaining event removed, got %d", removed)
	}
}

func TestPostgresBookmarkRepository_UpsertAndGroupOrder(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, userRepo, "test-key-bookmarks")

	repo := NewPostgresBookmarkRepository(testPool)
	now := time.Now().UTC().Truncate(time.Millisecond)

	bookmark := models.Bookmark{
		UserID:    user.ID,
		TmdbID:    "550",
		Meta:      models.MediaMeta{Title: "Fight Club", Type: models.MediaTypeMovie},
		Groups:    []string{"favorites"},
		UpdatedAt: now,
	}
	if _, err := repo.Upsert(ctx, bookmark); err != nil {
		t.Fatalf("upsert bookmark: %v", err)
	}

	bookmark.Groups = []string{"favorites", "rewatch"}
	bookmark.UpdatedAt = now.Add(time.Minute)
	if _, err := repo.Upsert(ctx, bookmark); err != nil {
		t.Fatalf("upsert bookmark again: %v", err)
	}

	bookmarks, err := repo.ListForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list bookmarks: %v", err)
	}
	if len(bookmarks) != 1 || len(bookmarks[0].Groups) != 2 {
		t.Fatalf("expected a single bookmark with both groups, got %+v", bookmarks)
	}

	order, err := repo.GroupOrder(ctx, user.ID)
	if err != nil {
		t.Fatalf("group order before save: %v", err)
	}
	if len(order) != 0 {
		t.Fatalf("expected empty default order, got %v", order)
	}

	if err := repo.SetGroupOrder(ctx, user.ID, []string{"rewatch", "favorites"}); err != nil {
		t.Fatalf("set group order: %v", err)
	}

	order, err = repo.GroupOrder(ctx, user.ID)
	if err != nil {
		t.Fatalf("group order after save: %v", err)
	}
	if len(order) != 2 || order[0] != "rewatch" {
		t.Fatalf("expected saved order, got %v", order)
	}

	if err := repo.Delete(ctx, user.ID, bookmark.TmdbID); err != nil {
		t.Fatalf("delete bookmark: %v", err)
	}

	if _, err := repo.DeleteForUser(ctx, user.ID); err != nil {
		t.Fatalf("delete bookmarks for user: %v", err)
	}
	order, err = repo.GroupOrder(ctx, user.ID)
	if err != nil {
		t.Fatalf("group order after cascade: %v", err)
	}
	if len(order) != 0 {
		t.Fatalf("expected group order removed with bookmarks, got %v", order)
	}
}

func TestPostgresListRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, userRepo, "test-key-lists")

	repo := NewPostgresListRepository(testPool)

	list := models.List{
		ID:     uuid.NewString(),
		UserID: user.ID,
		Name:   "Weekend queue",
		Public: false,
	}
	created, err := repo.Create(ctx, list)
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	if len(created.Items) != 0 {
		t.Fatalf("expected empty new list, got %+v", created.Items)
	}

	items := []models.ListItem{
		{ID: uuid.NewString(), TmdbID: "550", Type: models.MediaTypeMovie},
		{ID: uuid.NewString(), TmdbID: "1399", Type: models.MediaTypeShow},
	}
	if err := repo.AddItems(ctx, list.ID, items); err != nil {
		t.Fatalf("add items: %v", err)
	}

	// Re-adding the same title is a no-op, not a conflict.
	duplicate := []models.ListItem{{ID: uuid.NewString(), TmdbID: "550", Type: models.MediaTypeMovie}}
	if err := repo.AddItems(ctx, list.ID, duplicate); err != nil {
		t.Fatalf("re-add item: %v", err)
	}

	loaded, err := repo.FindByID(ctx, list.ID)
	if err != nil {
		t.Fatalf("find list: %v", err)
	}
	if len(loaded.Items) != 2 {
		t.Fatalf("expected 2 items, got %+v", loaded.Items)
	}

	name := "Renamed queue"
	public := true
	updated, err := repo.UpdateMeta(ctx, list.ID, &name, nil, &public)
	if err != nil {
		t.Fatalf("update list meta: %v", err)
	}
	if updated.Name != name || !updated.Public {
		t.Fatalf("expected meta changes to persist, got %+v", updated)
	}

	removed, err := repo.RemoveItems(ctx, list.ID, []string{items[0].ID})
	if err != nil {
		t.Fatalf("remove items: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed item, got %d", removed)
	}

	lists, err := repo.ListForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list for user: %v", err)
	}
	if len(lists) != 1 {
		t.Fatalf("expected 1 list, got %d", len(lists))
	}

	if err := repo.Delete(ctx, list.ID); err != nil {
		t.Fatalf("delete list: %v", err)
	}
	if err := repo.Delete(ctx, list.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestPostgresSettingsRepository_GetUpsertDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, userRepo, "test-key-settings")

	repo := NewPostgresSettingsRepository(testPool)

	if _, err := repo.Get(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first save, got %v", err)
	}

	theme := "dark"
	settings := models.DefaultSettings(user.ID)
	settings.ApplicationTheme = &theme
	settings.SourceOrder = []string{"alpha", "beta"}

	if _, err := repo.Upsert(ctx, settings); err != nil {
		t.Fatalf("upsert settings: %v", err)
	}

	loaded, err := repo.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if loaded.ApplicationTheme == nil || *loaded.ApplicationTheme != theme {
		t.Fatalf("expected theme to persist, got %+v", loaded.ApplicationTheme)
	}
	if len(loaded.SourceOrder) != 2 || loaded.SourceOrder[0] != "alpha" {
		t.Fatalf("expected source order to persist, got %v", loaded.SourceOrder)
	}
	if loaded.TraktKey != nil {
		t.Fatalf("expected unset trakt key to stay nil, got %v", *loaded.TraktKey)
	}

	settings.ApplicationTheme = nil
	if _, err := repo.Upsert(ctx, settings); err != nil {
		t.Fatalf("upsert settings again: %v", err)
	}

	loaded, err = repo.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get settings after update: %v", err)
	}
	if loaded.ApplicationTheme != nil {
		t.Fatalf("expected cleared theme, got %v", *loaded.ApplicationTheme)
	}

	if err := repo.DeleteForUser(ctx, user.ID); err != nil {
		t.Fatalf("delete settings: %v", err)
	}
	if _, err := repo.Get(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `TRUNCATE TABLE list_items, lists, user_settings, user_group_order, bookmarks,
        watch_history, progress_items, sessions, challenge_codes, users CASCADE`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, publicKey string) models.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	user := models.User{
		ID:           uuid.NewString(),
		PublicKey:    publicKey,
		Namespace:    "streamtrack",
		Nickname:     "TestOtter01",
		Profile:      models.Profile{Icon: "ghost", ColorA: "#0044ff", ColorB: "#ff4400"},
		Permissions:  []string{},
		CreatedAt:    now,
		LastLoggedIn: now,
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func testProgressItem(userID, tmdbID string, seasonID, episodeID *string) models.ProgressItem {
	item := models.ProgressItem{
		ID:        uuid.NewString(),
		UserID:    userID,
		TmdbID:    tmdbID,
		SeasonID:  seasonID,
		EpisodeID: episodeID,
		Duration:  7260,
		Watched:   600,
		Meta:      models.MediaMeta{Title: "Test Title", Type: models.MediaTypeMovie},
		UpdatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if seasonID != nil {
		item.Meta.Type = models.MediaTypeShow
	}
	return item
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
