// Package metrics exposes the Prometheus instruments the API updates while
// serving requests, plus the registry the scrape endpoint serves.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the application's Prometheus instruments. Client-reported
// counters are mirrored into the Daily and Weekly windows so their endpoints
// show only recent activity.
type Metrics struct {
	Registry *prometheus.Registry
	Daily    *Window
	Weekly   *Window

	userCount      prometheus.Gauge
	captchaSolves  *prometheus.CounterVec
	providerStatus *prometheus.CounterVec
	watchEvents    *prometheus.CounterVec
}

// New builds a registry with the application instruments plus the standard
// Go runtime collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: registry,
		userCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamtrack_user_count",
			Help: "Number of registered user accounts.",
		}),
		captchaSolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamtrack_captcha_solves_total",
			Help: "Captcha solves attempted during registration.",
		}, []string{"success"}),
		providerStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamtrack_provider_status_total",
			Help: "Stream provider outcomes reported by clients.",
		}, []string{"provider_id", "status"}),
		watchEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamtrack_watch_events_total",
			Help: "Playback attempts reported by clients.",
		}, []string{"tmdb_full_id", "provider_id", "success"}),
	}

	registry.MustRegister(m.userCount, m.captchaSolves, m.providerStatus, m.watchEvents)

	m.Daily = newWindow(24 * time.Hour)
	m.Weekly = newWindow(7 * 24 * time.Hour)
	return m
}

// SetUserCount records the current number of registered accounts.
func (m *Metrics) SetUserCount(count int64) {
	m.userCount.Set(float64(count))
}

// RecordCaptchaSolve counts one captcha attempt.
func (m *Metrics) RecordCaptchaSolve(success bool) {
	label := strconv.FormatBool(success)
	m.captchaSolves.WithLabelValues(label).Inc()
	m.Daily.recordCaptchaSolve(label)
	m.Weekly.recordCaptchaSolve(label)
}

// RecordProviderStatus counts one provider outcome report.
func (m *Metrics) RecordProviderStatus(providerID, status string) {
	m.providerStatus.WithLabelValues(providerID, status).Inc()
	m.Daily.recordProviderStatus(providerID, status)
	m.Weekly.recordProviderStatus(providerID, status)
}

// RecordWatchEvent counts one playback attempt report.
func (m *Metrics) RecordWatchEvent(tmdbFullID, providerID string, success bool) {
	label := strconv.FormatBool(success)
	m.watchEvents.WithLabelValues(tmdbFullID, providerID, label).Inc()
	m.Daily.recordWatchEvent(tmdbFullID, providerID, label)
	m.Weekly.recordWatchEvent(tmdbFullID, providerID, label)
}

// Window mirrors the client-reported counters into its own registry and
// clears them once the period elapses, so a scrape covers at most one
// day's (or week's) worth of reports.
type Window struct {
	Registry *prometheus.Registry

	mu     sync.Mutex
	period time.Duration
	start  time.Time

	captchaSolves  *prometheus.CounterVec
	providerStatus *prometheus.CounterVec
	watchEvents    *prometheus.CounterVec

	// NowFunc overrides the clock for tests.
	NowFunc func() time.Time
}

func newWindow(period time.Duration) *Window {
	registry := prometheus.NewRegistry()
	w := &Window{
		Registry: registry,
		period:   period,
		captchaSolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamtrack_captcha_solves_total",
			Help: "Captcha solves attempted during registration.",
		}, []string{"success"}),
		providerStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamtrack_provider_status_total",
			Help: "Stream provider outcomes reported by clients.",
		}, []string{"provider_id", "status"}),
		watchEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamtrack_watch_events_total",
			Help: "Playback attempts reported by clients.",
		}, []string{"tmdb_full_id", "provider_id", "success"}),
	}
	registry.MustRegister(w.captchaSolves, w.providerStatus, w.watchEvents)
	return w
}

// Roll clears the window's counters when its period has elapsed. The first
// call anchors the window.
func (w *Window) Roll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if w.start.IsZero() {
		w.start = now
		return
	}
	if now.Sub(w.start) < w.period {
		return
	}

	w.captchaSolves.Reset()
	w.providerStatus.Reset()
	w.watchEvents.Reset()
	w.start = now
}

// Handler serves the window's registry, rolling it first so a scrape never
// reports an expired period.
func (w *Window) Handler() http.Handler {
	inner := promhttp.HandlerFor(w.Registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		w.Roll()
		inner.ServeHTTP(rw, r)
	})
}

func (w *Window) recordCaptchaSolve(label string) {
	w.Roll()
	w.captchaSolves.WithLabelValues(label).Inc()
}

func (w *Window) recordProviderStatus(providerID, status string) {
	w.Roll()
	w.providerStatus.WithLabelValues(providerID, status).Inc()
}

func (w *Window) recordWatchEvent(tmdbFullID, providerID, label string) {
	w.Roll()
	w.watchEvents.WithLabelValues(tmdbFullID, providerID, label).Inc()
}

func (w *Window) now() time.Time {
	if w.NowFunc != nil {
		return w.NowFunc()
	}
	return time.Now().UTC()
}
