package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/plumelab/plume-engine/pkg/models"
)

// apiKeyRandomBytes sizes the random part of generated keys. 32 bytes
// encode to 43 URL-safe characters.
const apiKeyRandomBytes = 32

// GenerateAPIKey mints a new API key. It returns the plaintext key, shown
// to the user exactly once, and the SHA-256 hex digest that gets stored.
func GenerateAPIKey() (plaintext, hash string, err error) {
	buf := make([]byte, apiKeyRandomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate api key: %w", err)
	}

	plaintext = models.APIKeyPrefix + base64.RawURLEncoding.EncodeToString(buf)
	return plaintext, HashAPIKey(plaintext), nil
}

// HashAPIKey returns the SHA-256 hex digest of a plaintext key.
func HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// IsAPIKey reports whether a bearer credential looks like an API key rather
// than an access token.
func IsAPIKey(credential string) bool {
	return strings.HasPrefix(credential, models.APIKeyPrefix)
}
