package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func identityRequest(path string, identity *auth.Identity) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if identity != nil {
		req = req.WithContext(context.WithValue(req.Context(), auth.IdentityKey, identity))
	}
	return req
}

func TestRateLimiter_RejectsAfterBurst(t *testing.T) {
	rl := NewRateLimiter(config.LimitsConfig{RequestsPerSecond: 0.001, Burst: 2}, nil)
	handler := rl.Middleware()(okHandler())

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, identityRequest("/api/grammar/correct", &auth.Identity{UserID: 7}))
		require.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identityRequest("/api/grammar/correct", &auth.Identity{UserID: 7}))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var envelope map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "RATE_LIMITED", envelope["error_code"])
}

func TestRateLimiter_SeparateBucketsPerUser(t *testing.T) {
	rl := NewRateLimiter(config.LimitsConfig{RequestsPerSecond: 0.001, Burst: 1}, nil)
	handler := rl.Middleware()(okHandler())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, identityRequest("/api/grammar/correct", &auth.Identity{UserID: 7}))
	require.Equal(t, http.StatusOK, first.Code)

	exhausted := httptest.NewRecorder()
	handler.ServeHTTP(exhausted, identityRequest("/api/grammar/correct", &auth.Identity{UserID: 7}))
	require.Equal(t, http.StatusTooManyRequests, exhausted.Code)

	other := httptest.NewRecorder()
	handler.ServeHTTP(other, identityRequest("/api/grammar/correct", &auth.Identity{UserID: 8}))
	assert.Equal(t, http.StatusOK, other.Code, "a second user keeps an untouched bucket")
}

func TestRateLimiter_APIKeysGetOwnBuckets(t *testing.T) {
	rl := NewRateLimiter(config.LimitsConfig{RequestsPerSecond: 0.001, Burst: 1}, nil)
	handler := rl.Middleware()(okHandler())

	keyA := &auth.Identity{UserID: 7, Method: auth.MethodAPIKey, APIKeyID: 1}
	keyB := &auth.Identity{UserID: 7, Method: auth.MethodAPIKey, APIKeyID: 2}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identityRequest("/mcp", keyA))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, identityRequest("/mcp", keyA))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, identityRequest("/mcp", keyB))
	assert.Equal(t, http.StatusOK, rec.Code, "each key of the same user is limited on its own")
}

func TestRateLimiter_AnonymousKeyedByClientIP(t *testing.T) {
	rl := NewRateLimiter(config.LimitsConfig{RequestsPerSecond: 0.001, Burst: 1}, nil)
	handler := rl.Middleware()(okHandler())

	reqA := identityRequest("/api/qa/answer", nil)
	reqA.Header.Set("X-Forwarded-For", "203.0.113.7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, reqA)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, reqA)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	reqB := identityRequest("/api/qa/answer", nil)
	reqB.Header.Set("X-Forwarded-For", "203.0.113.8")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, reqB)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_HealthEndpointsExempt(t *testing.T) {
	rl := NewRateLimiter(config.LimitsConfig{RequestsPerSecond: 0.001, Burst: 0}, nil)
	handler := rl.Middleware()(okHandler())

	for _, path := range []string{"/health", "/ping"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, identityRequest(path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, "%s is never limited", path)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, identityRequest("/api/qa/answer", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
