// Package mcpauth provides MCP-specific authentication middleware.
// It wraps the core auth service with RFC 6750 Bearer token error responses.
package mcpauth

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/auth"
)

// Middleware provides MCP-specific authentication middleware.
// Unlike the general auth middleware, this returns RFC 6750 WWW-Authenticate
// headers for Bearer token authentication errors, which MCP clients parse.
type Middleware struct {
	authService auth.AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new MCP auth middleware.
func NewMiddleware(authService auth.AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireAPIKey validates the credential and requires it to be an API key.
// Browser sessions and access tokens are rejected: agent clients hold keys,
// and keys are what the per-principal limits and audit trail are built on.
// Returns RFC 6750 WWW-Authenticate headers on authentication failures.
func (m *Middleware) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.authService.Authenticate(r)
		if err != nil {
			m.logger.Debug("MCP auth failed: invalid or missing credential",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			m.writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_token", "A valid API key is required")
			return
		}

		if identity.Method != auth.MethodAPIKey {
			m.logger.Warn("MCP auth failed: non-key credential",
				zap.String("auth_method", identity.Method),
				zap.String("path", r.URL.Path))
			m.writeWWWAuthenticate(w, http.StatusForbidden, "insufficient_scope", "The MCP endpoint accepts API keys only")
			return
		}

		ctx := context.WithValue(r.Context(), auth.IdentityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// writeWWWAuthenticate writes an RFC 6750 Bearer token error response.
// See: https://datatracker.ietf.org/doc/html/rfc6750#section-3
func (m *Middleware) writeWWWAuthenticate(w http.ResponseWriter, status int, errorCode, description string) {
	headerValue := `Bearer error="` + errorCode + `", error_description="` + description + `"`
	w.Header().Set("WWW-Authenticate", headerValue)
	w.WriteHeader(status)
}
