package handlers

import "net/http"

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Auth         AuthService
	Sessions     SessionManager
	SessionStore SessionStore
	Users        UserStore
	Progress     ProgressStore
	Reconciler   ProgressReconciler
	History      WatchHistoryStore
	Bookmarks    BookmarkStore
	Lists        ListStore
	Settings     SettingsStore
	Metrics      MetricsRecorder
	// MetricsExposition serves the Prometheus scrape payload; the daily and
	// weekly variants serve windowed registries of client-reported counters.
	MetricsExposition       http.Handler
	MetricsDailyExposition  http.Handler
	MetricsWeeklyExposition http.Handler
	AuthLimiter             RateLimiter
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Auth: deps.Auth, Metrics: deps.Metrics, Limiter: deps.AuthLimiter}
	users := UserHandler{
		Users:     deps.Users,
		Sessions:  deps.Sessions,
		Store:     deps.SessionStore,
		Progress:  deps.Progress,
		History:   deps.History,
		Bookmarks: deps.Bookmarks,
		Lists:     deps.Lists,
		Settings:  deps.Settings,
	}
	progress := ProgressHandler{Sessions: deps.Sessions, Progress: deps.Progress, Reconciler: deps.Reconciler}
	history := WatchHistoryHandler{Sessions: deps.Sessions, History: deps.History}
	bookmarks := BookmarkHandler{Sessions: deps.Sessions, Bookmarks: deps.Bookmarks}
	lists := ListHandler{Sessions: deps.Sessions, Lists: deps.Lists}
	settings := SettingsHandler{Sessions: deps.Sessions, Settings: deps.Settings}
	metrics := MetricsHandler{Metrics: deps.Metrics, Users: deps.Users}

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /auth/register/start", auth.RegisterStart)
	mux.HandleFunc("POST /auth/register/complete", auth.RegisterComplete)
	mux.HandleFunc("POST /auth/login/start", auth.LoginStart)
	mux.HandleFunc("POST /auth/login/complete", auth.LoginComplete)

	mux.HandleFunc("GET /users/@me", users.Me)
	mux.HandleFunc("PATCH /users/{id}", users.Edit)
	mux.HandleFunc("DELETE /users/{id}", users.Delete)
	mux.HandleFunc("GET /users/{id}/sessions", users.ListSessions)
	mux.HandleFunc("DELETE /sessions/{id}", users.DeleteSession)
	mux.HandleFunc("GET /users/{id}/ratings", users.ListRatings)
	mux.HandleFunc("POST /users/{id}/ratings", users.UpsertRating)

	mux.HandleFunc("GET /users/{id}/progress", progress.List)
	mux.HandleFunc("PUT /users/{id}/progress/import", progress.Import)
	mux.HandleFunc("DELETE /users/{id}/progress/cleanup", progress.Cleanup)
	mux.HandleFunc("PUT /users/{id}/progress/{tmdbId}", progress.Put)
	mux.HandleFunc("DELETE /users/{id}/progress/{tmdbId}", progress.Delete)

	mux.HandleFunc("GET /users/{id}/watch-history", history.List)
	mux.HandleFunc("PUT /users/{id}/watch-history/{tmdbId}", history.Put)
	mux.HandleFunc("DELETE /users/{id}/watch-history/{tmdbId}", history.Delete)

	mux.HandleFunc("GET /users/{id}/bookmarks", bookmarks.List)
	mux.HandleFunc("PUT /users/{id}/bookmarks", bookmarks.PutBulk)
	mux.HandleFunc("POST /users/{id}/bookmarks/{tmdbId}", bookmarks.Put)
	mux.HandleFunc("DELETE /users/{id}/bookmarks/{tmdbId}", bookmarks.Delete)
	mux.HandleFunc("GET /users/{id}/group-order", bookmarks.GetGroupOrder)
	mux.HandleFunc("PUT /users/{id}/group-order", bookmarks.PutGroupOrder)

	mux.HandleFunc("GET /users/{id}/lists", lists.List)
	mux.HandleFunc("POST /users/{id}/lists", lists.Create)
	mux.HandleFunc("PATCH /users/{id}/lists/{listId}", lists.Update)
	mux.HandleFunc("DELETE /users/{id}/lists/{listId}", lists.Delete)
	mux.HandleFunc("GET /lists/{id}", lists.Get)

	mux.HandleFunc("GET /users/{id}/settings", settings.Get)
	mux.HandleFunc("PUT /users/{id}/settings", settings.Put)

	mux.HandleFunc("POST /metrics/providers", metrics.Providers)
	mux.HandleFunc("POST /metrics/captcha", metrics.Captcha)
	if deps.MetricsExposition != nil {
		mux.Handle("GET /metrics", metrics.RefreshUserCount(deps.MetricsExposition))
	}
	if deps.MetricsDailyExposition != nil {
		mux.Handle("GET /metrics/daily", deps.MetricsDailyExposition)
	}
	if deps.MetricsWeeklyExposition != nil {
		mux.Handle("GET /metrics/weekly", deps.MetricsWeeklyExposition)
	}
}
