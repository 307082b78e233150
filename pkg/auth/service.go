package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/models"
	"github.com/plumelab/plume-engine/pkg/repositories"
)

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
	ErrInvalidAPIKey        = errors.New("invalid api key")
	ErrUnknownAccount       = errors.New("token does not map to a known account")
)

// AuthService defines the interface for authentication operations.
// This abstraction enables clean separation between HTTP handling
// and authentication logic, making both easier to test.
type AuthService interface {
	// Authenticate resolves the request principal. It checks, in order:
	//   1. Authorization header with "Bearer" scheme: an ak_live_ credential
	//      is verified against stored API key digests, anything else is
	//      validated as an access token.
	//   2. The SPA session cookie, which carries an access token.
	// Returns ErrMissingAuthorization when no credential is present.
	Authenticate(r *http.Request) (*Identity, error)

	// IssueToken signs an access token for the user.
	IssueToken(user *models.User) (string, time.Time, error)
}

// authService implements AuthService.
type authService struct {
	tokens  *TokenService
	jwks    JWKSClientInterface
	users   repositories.UserRepository
	apiKeys repositories.APIKeyRepository
	logger  *zap.Logger
}

// NewAuthService creates a new AuthService. jwks may be nil when no
// external issuers are configured.
func NewAuthService(
	tokens *TokenService,
	jwks JWKSClientInterface,
	users repositories.UserRepository,
	apiKeys repositories.APIKeyRepository,
	logger *zap.Logger,
) AuthService {
	return &authService{
		tokens:  tokens,
		jwks:    jwks,
		users:   users,
		apiKeys: apiKeys,
		logger:  logger,
	}
}

// Authenticate resolves the request principal.
func (s *authService) Authenticate(r *http.Request) (*Identity, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.logger.Debug("Invalid Authorization header format",
				zap.String("path", r.URL.Path))
			return nil, ErrInvalidAuthFormat
		}

		if IsAPIKey(parts[1]) {
			return s.authenticateAPIKey(r.Context(), parts[1])
		}
		return s.authenticateToken(r.Context(), parts[1], MethodToken)
	}

	if token := SessionToken(r); token != "" {
		return s.authenticateToken(r.Context(), token, MethodSession)
	}

	s.logger.Debug("No credential found in request",
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method))
	return nil, ErrMissingAuthorization
}

// IssueToken signs an access token for the user.
func (s *authService) IssueToken(user *models.User) (string, time.Time, error) {
	return s.tokens.Issue(user)
}

// authenticateToken validates an access token and resolves its identity.
// Local HS256 tokens are tried first; external-issuer tokens go through
// JWKS when configured.
func (s *authService) authenticateToken(ctx context.Context, tokenString, method string) (*Identity, error) {
	claims, err := s.tokens.Validate(tokenString)
	if err != nil && s.jwks != nil {
		claims, err = s.jwks.ValidateToken(tokenString)
	}
	if err != nil {
		s.logger.Debug("Token validation failed", zap.Error(err))
		return nil, err
	}

	if claims.UserID != 0 {
		return &Identity{
			UserID:   claims.UserID,
			Username: claims.Username,
			Method:   method,
		}, nil
	}

	// External-issuer tokens carry no local user id; map by email.
	if claims.Email != "" {
		user, err := s.users.GetByEmail(ctx, claims.Email)
		if err != nil {
			s.logger.Debug("No local account for external token",
				zap.String("email", claims.Email), zap.Error(err))
			return nil, ErrUnknownAccount
		}
		return &Identity{
			UserID:   user.ID,
			Username: user.Username,
			Method:   method,
		}, nil
	}

	return nil, ErrUnknownAccount
}

// authenticateAPIKey verifies an ak_live_ credential against stored digests.
func (s *authService) authenticateAPIKey(ctx context.Context, plaintext string) (*Identity, error) {
	key, err := s.apiKeys.GetByHash(ctx, HashAPIKey(plaintext))
	if err != nil {
		s.logger.Debug("API key lookup failed", zap.Error(err))
		return nil, ErrInvalidAPIKey
	}

	now := time.Now()
	if !key.IsUsable(now) {
		s.logger.Debug("Rejected unusable api key",
			zap.Int64("key_id", key.ID),
			zap.Bool("active", key.IsActive),
			zap.Bool("expired", key.IsExpired(now)))
		return nil, ErrInvalidAPIKey
	}

	user, err := s.users.GetByID(ctx, key.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve api key owner: %w", err)
	}

	// Best effort; a failed touch must not reject the request.
	if err := s.apiKeys.TouchLastUsed(ctx, key.ID, now); err != nil {
		s.logger.Warn("Failed to update api key usage timestamp",
			zap.Int64("key_id", key.ID), zap.Error(err))
	}

	return &Identity{
		UserID:   user.ID,
		Username: user.Username,
		Method:   MethodAPIKey,
		APIKeyID: key.ID,
	}, nil
}

// Ensure authService implements AuthService at compile time.
var _ AuthService = (*authService)(nil)
