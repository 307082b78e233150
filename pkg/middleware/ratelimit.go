package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/plumelab/plume-engine/pkg/audit"
	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/config"
)

const (
	// visitorIdleTimeout is how long an idle principal keeps its bucket.
	visitorIdleTimeout = 3 * time.Minute
	// visitorPruneEvery bounds how often the visitor map is swept.
	visitorPruneEvery = time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter holds one token bucket per principal. Authenticated requests are
// keyed by API key or user id, anonymous ones by client IP, so a single noisy
// client cannot starve the rest.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	auditor *audit.SecurityAuditor

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastPrune time.Time
}

// NewRateLimiter builds a limiter from the configured per-principal rate.
func NewRateLimiter(limits config.LimitsConfig, auditor *audit.SecurityAuditor) *RateLimiter {
	return &RateLimiter{
		limit:     rate.Limit(limits.RequestsPerSecond),
		burst:     limits.Burst,
		auditor:   auditor,
		visitors:  make(map[string]*visitor),
		lastPrune: time.Now(),
	}
}

// Middleware rejects requests that exceed the principal's bucket with a
// RATE_LIMITED envelope. Health endpoints are exempt so probes stay cheap.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ping" {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.allow(principalKey(r)) {
				if rl.auditor != nil {
					rl.auditor.LogRateLimited(r.Context(), r.URL.Path, requestIP(r))
				}
				w.Header().Set("Retry-After", "1")
				writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// allow takes one token from the principal's bucket, creating it on first use.
func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastPrune) > visitorPruneEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > visitorIdleTimeout {
				delete(rl.visitors, k)
			}
		}
		rl.lastPrune = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

// principalKey identifies who the bucket belongs to. API keys get their own
// bucket even when several belong to the same user.
func principalKey(r *http.Request) string {
	if identity, ok := auth.GetIdentity(r.Context()); ok && identity != nil {
		if identity.Method == auth.MethodAPIKey && identity.APIKeyID != 0 {
			return fmt.Sprintf("key:%d", identity.APIKeyID)
		}
		if identity.UserID != 0 {
			return fmt.Sprintf("user:%d", identity.UserID)
		}
	}
	return "ip:" + requestIP(r)
}

// requestIP extracts the originating client address, preferring the first
// X-Forwarded-For entry set by the reverse proxy.
func requestIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	return r.RemoteAddr
}
