package testhelpers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestSecretKey signs tokens issued by GenerateTestJWT. Integration tests
// configure their auth stack with the same secret.
const TestSecretKey = "plume-test-secret"

// GenerateTestJWT creates a signed HS256 access token for the given user.
// It mirrors the claims shape of locally issued tokens so auth middleware
// accepts it when configured with TestSecretKey.
func GenerateTestJWT(t *testing.T, userID int64, username string) string {
	t.Helper()

	claims := jwt.MapClaims{
		"iss":      "plume-engine",
		"sub":      username,
		"uid":      userID,
		"username": username,
		"iat":      time.Now().Unix(),
		"exp":      time.Now().Add(time.Hour).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestSecretKey))
	if err != nil {
		t.Fatalf("Failed to sign test jwt: %v", err)
	}
	return token
}

// GenerateTestJWTWithBearer returns the token with "Bearer " prefix for the
// Authorization header.
func GenerateTestJWTWithBearer(t *testing.T, userID int64, username string) string {
	return "Bearer " + GenerateTestJWT(t, userID, username)
}
