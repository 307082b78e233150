package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/config"
	"github.com/plumelab/plume-engine/pkg/models"
)

// mockUserRepo is an in-memory UserRepository for testing.
type mockUserRepo struct {
	users map[int64]*models.User
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

// mockAPIKeyRepo is an in-memory APIKeyRepository for testing.
type mockAPIKeyRepo struct {
	byHash  map[string]*models.APIKey
	touched []int64
}

func (m *mockAPIKeyRepo) Create(ctx context.Context, key *models.APIKey) error {
	m.byHash[key.KeyHash] = key
	return nil
}

func (m *mockAPIKeyRepo) ListByUser(ctx context.Context, userID int64) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for _, key := range m.byHash {
		if key.UserID == userID {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (m *mockAPIKeyRepo) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	if key, ok := m.byHash[keyHash]; ok {
		return key, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockAPIKeyRepo) Revoke(ctx context.Context, id, userID int64) error {
	for _, key := range m.byHash {
		if key.ID == id && key.UserID == userID {
			key.IsActive = false
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockAPIKeyRepo) UpdateHash(ctx context.Context, id, userID int64, keyHash string) error {
	return nil
}

func (m *mockAPIKeyRepo) TouchLastUsed(ctx context.Context, id int64, usedAt time.Time) error {
	m.touched = append(m.touched, id)
	return nil
}

// mockJWKSClient is a mock implementation of JWKSClientInterface for testing.
type mockJWKSClient struct {
	claims *Claims
	err    error
}

func (m *mockJWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.claims, nil
}

func (m *mockJWKSClient) Close() {}

type authTestEnv struct {
	tokens  *TokenService
	users   *mockUserRepo
	apiKeys *mockAPIKeyRepo
	service AuthService
}

func newAuthTestEnv(jwks JWKSClientInterface) *authTestEnv {
	tokens := NewTokenService(&config.AuthConfig{
		SecretKey:          "test-secret",
		TokenTTLMinutes:    60,
		EnableVerification: true,
	})
	users := &mockUserRepo{users: map[int64]*models.User{
		7: {ID: 7, Username: "marie", Email: "marie@example.fr"},
	}}
	apiKeys := &mockAPIKeyRepo{byHash: make(map[string]*models.APIKey)}
	return &authTestEnv{
		tokens:  tokens,
		users:   users,
		apiKeys: apiKeys,
		service: NewAuthService(tokens, jwks, users, apiKeys, zap.NewNop()),
	}
}

func TestAuthService_Authenticate_BearerToken(t *testing.T) {
	env := newAuthTestEnv(nil)

	token, _, err := env.service.IssueToken(env.users.users[7])
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	identity, err := env.service.Authenticate(req)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if identity.UserID != 7 {
		t.Errorf("expected user 7, got %d", identity.UserID)
	}
	if identity.Username != "marie" {
		t.Errorf("expected username marie, got %q", identity.Username)
	}
	if identity.Method != MethodToken {
		t.Errorf("expected method %q, got %q", MethodToken, identity.Method)
	}
}

func TestAuthService_Authenticate_SessionCookie(t *testing.T) {
	env := newAuthTestEnv(nil)
	InitSessionStore("session-secret", CookieSettings{}, 3600)

	token, _, err := env.service.IssueToken(env.users.users[7])
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	// Write the session cookie, then replay it on a fresh request.
	rec := httptest.NewRecorder()
	setReq := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	if err := SetSessionToken(setReq, rec, token); err != nil {
		t.Fatalf("failed to set session token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	for _, cookie := range rec.Result().Cookies() {
		req.AddCookie(cookie)
	}

	identity, err := env.service.Authenticate(req)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if identity.UserID != 7 {
		t.Errorf("expected user 7, got %d", identity.UserID)
	}
	if identity.Method != MethodSession {
		t.Errorf("expected method %q, got %q", MethodSession, identity.Method)
	}
}

func TestAuthService_Authenticate_HeaderTakesPrecedence(t *testing.T) {
	env := newAuthTestEnv(nil)
	InitSessionStore("session-secret", CookieSettings{}, 3600)

	token, _, err := env.service.IssueToken(env.users.users[7])
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	rec := httptest.NewRecorder()
	setReq := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	if err := SetSessionToken(setReq, rec, token); err != nil {
		t.Fatalf("failed to set session token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	for _, cookie := range rec.Result().Cookies() {
		req.AddCookie(cookie)
	}
	req.Header.Set("Authorization", "Bearer not-a-valid-token")

	// The bad header must fail rather than fall through to the session.
	if _, err := env.service.Authenticate(req); err == nil {
		t.Fatal("expected header credential to take precedence and fail")
	}
}

func TestAuthService_Authenticate_APIKey(t *testing.T) {
	env := newAuthTestEnv(nil)

	plaintext, hash, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("failed to generate api key: %v", err)
	}
	env.apiKeys.byHash[hash] = &models.APIKey{
		ID:       3,
		UserID:   7,
		KeyName:  "scripts",
		KeyHash:  hash,
		IsActive: true,
	}

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+plaintext)

	identity, err := env.service.Authenticate(req)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if identity.UserID != 7 {
		t.Errorf("expected user 7, got %d", identity.UserID)
	}
	if identity.Method != MethodAPIKey {
		t.Errorf("expected method %q, got %q", MethodAPIKey, identity.Method)
	}
	if identity.APIKeyID != 3 {
		t.Errorf("expected key id 3, got %d", identity.APIKeyID)
	}
	if len(env.apiKeys.touched) != 1 || env.apiKeys.touched[0] != 3 {
		t.Errorf("expected key usage to be recorded, got %v", env.apiKeys.touched)
	}
}

func TestAuthService_Authenticate_APIKey_Rejected(t *testing.T) {
	env := newAuthTestEnv(nil)

	plaintext, hash, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("failed to generate api key: %v", err)
	}
	expired := time.Now().Add(-time.Hour)
	env.apiKeys.byHash[hash] = &models.APIKey{
		ID:        4,
		UserID:    7,
		KeyHash:   hash,
		IsActive:  true,
		ExpiresAt: &expired,
	}

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+plaintext)

	if _, err := env.service.Authenticate(req); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey for expired key, got %v", err)
	}

	// Unknown key
	unknown, _, _ := GenerateAPIKey()
	req.Header.Set("Authorization", "Bearer "+unknown)
	if _, err := env.service.Authenticate(req); !errors.Is(err, ErrInvalidAPIKey) {
		t.Errorf("expected ErrInvalidAPIKey for unknown key, got %v", err)
	}
}

func TestAuthService_Authenticate_MissingAuth(t *testing.T) {
	env := newAuthTestEnv(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)

	_, err := env.service.Authenticate(req)
	if !errors.Is(err, ErrMissingAuthorization) {
		t.Errorf("expected ErrMissingAuthorization, got %v", err)
	}
}

func TestAuthService_Authenticate_InvalidAuthFormat(t *testing.T) {
	env := newAuthTestEnv(nil)

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "just-a-token"},
		{"wrong scheme", "Basic some-token"},
		{"too many parts", "Bearer one two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
			req.Header.Set("Authorization", tt.header)

			if _, err := env.service.Authenticate(req); !errors.Is(err, ErrInvalidAuthFormat) {
				t.Errorf("expected ErrInvalidAuthFormat, got %v", err)
			}
		})
	}
}

func TestAuthService_Authenticate_ExternalIssuer(t *testing.T) {
	jwks := &mockJWKSClient{claims: &Claims{Email: "marie@example.fr"}}
	env := newAuthTestEnv(jwks)

	// Not a locally signed token, so validation falls through to JWKS.
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer external-token")

	identity, err := env.service.Authenticate(req)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if identity.UserID != 7 {
		t.Errorf("expected email to map to user 7, got %d", identity.UserID)
	}
}

func TestAuthService_Authenticate_ExternalIssuer_UnknownEmail(t *testing.T) {
	jwks := &mockJWKSClient{claims: &Claims{Email: "personne@example.fr"}}
	env := newAuthTestEnv(jwks)

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer external-token")

	if _, err := env.service.Authenticate(req); !errors.Is(err, ErrUnknownAccount) {
		t.Errorf("expected ErrUnknownAccount, got %v", err)
	}
}
