package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/logging"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates authentication logic to AuthService.
type Middleware struct {
	authService AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given AuthService.
func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireAuth rejects requests without a valid credential.
// Sets the identity in context for downstream handlers.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// An outer layer (ResolveIdentity) may have authenticated already.
		if identity, ok := GetIdentity(r.Context()); ok && identity != nil {
			next(w, r)
			return
		}

		identity, err := m.authService.Authenticate(r)
		if err != nil {
			m.unauthorized(w, r, "Authentication required")
			return
		}

		next(w, r.WithContext(withIdentity(r.Context(), identity)))
	}
}

// OptionalAuth resolves the identity when a credential is present and
// proceeds anonymously when none is. A credential that is present but
// invalid is still rejected.
func (m *Middleware) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := GetIdentity(r.Context()); ok && identity != nil {
			next(w, r)
			return
		}

		identity, err := m.authService.Authenticate(r)
		if err != nil {
			if errors.Is(err, ErrMissingAuthorization) {
				next(w, r)
				return
			}
			m.unauthorized(w, r, "Invalid credentials")
			return
		}

		next(w, r.WithContext(withIdentity(r.Context(), identity)))
	}
}

// ResolveIdentity authenticates at the edge of the middleware chain so that
// layers below it (rate limiting, request logging) can key on the principal.
// Anonymous requests pass through; a credential that is present but invalid
// is rejected here instead of deeper in the stack.
func (m *Middleware) ResolveIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := m.authService.Authenticate(r)
		if err != nil {
			if errors.Is(err, ErrMissingAuthorization) {
				next.ServeHTTP(w, r)
				return
			}
			m.unauthorized(w, r, "Invalid credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

// RequireAPIKey rejects requests that do not authenticate with an API key.
// Used for the MCP endpoint, where browser sessions make no sense.
func (m *Middleware) RequireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := GetIdentity(r.Context())
		if !ok || identity == nil {
			var err error
			identity, err = m.authService.Authenticate(r)
			if err != nil {
				m.unauthorized(w, r, "API key required")
				return
			}
			r = r.WithContext(withIdentity(r.Context(), identity))
		}

		if identity.Method != MethodAPIKey {
			m.logger.Warn("Non-key credential on key-only endpoint",
				zap.String("auth_method", identity.Method),
				zap.String("path", r.URL.Path))
			m.forbidden(w, r, "API key required")
			return
		}

		next(w, r)
	}
}

func withIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// unauthorized returns a 401 response with JSON error body.
func (m *Middleware) unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	writeAuthError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// forbidden returns a 403 response with JSON error body.
func (m *Middleware) forbidden(w http.ResponseWriter, r *http.Request, message string) {
	writeAuthError(w, r, http.StatusForbidden, "FORBIDDEN", message)
}

func writeAuthError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error_code":     code,
		"message":        message,
		"correlation_id": logging.CorrelationID(r.Context()),
	})
}
