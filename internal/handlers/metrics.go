package handlers

import (
	"net/http"

	"github.com/streamtrack/backend/internal/logging"
)

// MetricsHandler receives client-reported usage signals and refreshes the
// user-count gauge ahead of scrapes.
type MetricsHandler struct {
	Metrics MetricsRecorder
	Users   UserStore
}

type providerReportItem struct {
	TmdbID     string `json:"tmdbId" validate:"required"`
	Type       string `json:"type" validate:"required,oneof=movie show"`
	Title      string `json:"title" validate:"required"`
	Status     string `json:"status" validate:"required,oneof=success failed notfound"`
	ProviderID string `json:"providerId" validate:"required"`
	EmbedID    string `json:"embedId"`
}

type providerReportRequest struct {
	Items []providerReportItem `json:"items" validate:"required,min=1,max=10,dive"`
	Tool  *string              `json:"tool"`
}

// Providers handles POST /metrics/providers.
func (h MetricsHandler) Providers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req providerReportRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	for _, item := range req.Items {
		h.Metrics.RecordProviderStatus(item.ProviderID, item.Status)
		h.Metrics.RecordWatchEvent(item.Type+"-"+item.TmdbID, item.ProviderID, item.Status == "success")
	}

	respondJSON(ctx, w, http.StatusOK, map[string]bool{"success": true})
}

type captchaReportRequest struct {
	Success *bool `json:"success" validate:"required"`
}

// Captcha handles POST /metrics/captcha.
func (h MetricsHandler) Captcha(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req captchaReportRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	h.Metrics.RecordCaptchaSolve(*req.Success)
	respondJSON(ctx, w, http.StatusOK, map[string]bool{"success": true})
}

// RefreshUserCount updates the user-count gauge. Wrapped around the scrape
// endpoint so the gauge is current whenever Prometheus pulls.
func (h MetricsHandler) RefreshUserCount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, err := h.Users.Count(r.Context())
		if err != nil {
			logging.FromContext(r.Context()).Warn("refresh user count gauge", "error", err)
		} else {
			h.Metrics.SetUserCount(count)
		}
		next.ServeHTTP(w, r)
	})
}
