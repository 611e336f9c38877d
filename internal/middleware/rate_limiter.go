package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter controls how frequently a caller may perform an action.
type RateLimiter interface {
	Allow(key string) bool
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedRateLimiter tracks request rates per key (typically an IP address),
// expiring idle entries so the map stays bounded.
type keyedRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

// NewIPRateLimiter constructs a per-key rate limiter that allows up to
// `requests` events per `window` with an additional burst capacity. Entries
// expire after the provided ttl when no longer used.
func NewIPRateLimiter(requests int, window time.Duration, burst int, ttl time.Duration) RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &keyedRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (l *keyedRateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	now := l.now()

	l.mu.Lock()
	v, ok := l.visitors[key]
	if ok {
		v.lastSeen = now
	} else {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst), lastSeen: now}
		l.visitors[key] = v
	}
	for k, stale := range l.visitors {
		if now.Sub(stale.lastSeen) > l.ttl {
			delete(l.visitors, k)
		}
	}
	l.mu.Unlock()

	return v.limiter.Allow()
}

// WithNowFunc allows tests to override the time source.
func (l *keyedRateLimiter) WithNowFunc(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}
