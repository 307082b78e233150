// Package auth provides authentication for plume-engine. It issues and
// validates HS256 access tokens, verifies API keys against their stored
// digests, and carries the browser session cookie for the SPA.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// IdentityKey is the context key for storing the authenticated identity.
	IdentityKey contextKey = "identity"
	// TokenKey is the context key for storing the raw access token string.
	TokenKey contextKey = "token"
)

// Authentication methods recorded on the identity.
const (
	MethodToken   = "token"
	MethodAPIKey  = "api_key"
	MethodSession = "session"
)

// TokenIssuer is the iss claim on locally issued tokens.
const TokenIssuer = "plume-engine"

// Claims is the access token payload. Locally issued tokens carry the user
// id and username; tokens from an external identity provider carry email
// instead, which is mapped to a local account at validation time.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"uid,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Identity is the resolved principal for a request.
type Identity struct {
	UserID   int64
	Username string
	// Method records how the request authenticated: token, api_key, or session.
	Method string
	// APIKeyID is set when Method is api_key.
	APIKeyID int64
}

// GetIdentity retrieves the authenticated identity from the request context.
// Returns nil and false on anonymous requests.
func GetIdentity(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(*Identity)
	return identity, ok
}

// GetToken retrieves the raw access token string from the request context.
// Returns empty string and false if no token is present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}
