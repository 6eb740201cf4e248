package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// visitorIdle is how long a client's bucket survives without requests
const visitorIdle = 10 * time.Minute

// IPLimiter keeps one token bucket per client IP
type IPLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	stopCh   chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPLimiter allows each IP burst requests at once, refilled at limit
func NewIPLimiter(limit rate.Limit, burst int) *IPLimiter {
	l := &IPLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		burst:    burst,
		stopCh:   make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *IPLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			for ip, v := range l.visitors {
				if time.Since(v.lastSeen) > visitorIdle {
					delete(l.visitors, ip)
				}
			}
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call multiple times.
func (l *IPLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopCh)
	})
}

func (l *IPLimiter) visitor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// Reserve takes a token for the client's IP. When none is left it returns
// false and the wait until the next one.
func (l *IPLimiter) Reserve(r *http.Request) (bool, time.Duration) {
	res := l.visitor(GetClientIP(r)).Reserve()
	if !res.OK() {
		return false, time.Minute
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}

// Middleware rejects requests over the limit with 429 and Retry-After
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, wait := l.Reserve(r); !ok {
			w.Header().Set("Retry-After", retryAfter(wait))
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// retryAfter formats a wait as whole seconds, rounded up
func retryAfter(wait time.Duration) string {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// GetClientIP returns the client IP without its port.
// chi middleware.RealIP has already applied X-Real-IP / X-Forwarded-For;
// those headers must not be read again here since they are client-controlled.
func GetClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.Trim(r.RemoteAddr, "[]")
	}
	return host
}

// RateLimiters holds the limiters guarding the dashboard.
//
// Cached reports are cheap; what costs is a cold cache, which sends one
// search plus a voters call per issue to the tracker. Refresh only counts
// requests that would trigger that fetch.
type RateLimiters struct {
	Pages   *IPLimiter
	Refresh *IPLimiter
	Export  *IPLimiter

	// exportSlots caps concurrent CSV exports system-wide
	exportSlots chan struct{}
}

// NewRateLimiters creates the standard rate limiters
func NewRateLimiters() *RateLimiters {
	return &RateLimiters{
		// Pages: bursts of 60, one per second sustained
		Pages: NewIPLimiter(rate.Every(time.Second), 60),
		// Refresh: 4 tracker fetches at once, then one per 15 seconds
		Refresh: NewIPLimiter(rate.Every(15*time.Second), 4),
		// Export: 6 downloads at once, then one per 10 seconds
		Export:      NewIPLimiter(rate.Every(10*time.Second), 6),
		exportSlots: make(chan struct{}, 3),
	}
}

// Stop stops all rate limiter cleanup goroutines
func (rls *RateLimiters) Stop() {
	rls.Pages.Stop()
	rls.Refresh.Stop()
	rls.Export.Stop()
}

// ExportGuardMiddleware applies the export rate limit and the concurrency
// cap. Returns 429 if rate limited, 503 if all export slots are in use.
func (rls *RateLimiters) ExportGuardMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, wait := rls.Export.Reserve(r); !ok {
			w.Header().Set("Retry-After", retryAfter(wait))
			http.Error(w, "Export rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		select {
		case rls.exportSlots <- struct{}{}:
			defer func() { <-rls.exportSlots }()
		default:
			http.Error(w, "Export capacity full, try again shortly", http.StatusServiceUnavailable)
			return
		}

		next.ServeHTTP(w, r)
	})
}
