//go:build integration

package repositories

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/models"
	"github.com/plumelab/plume-engine/pkg/testhelpers"
)

// apiKeyTestContext holds test dependencies for API key repository tests.
type apiKeyTestContext struct {
	t      *testing.T
	testDB *testhelpers.TestDB
	repo   APIKeyRepository
	userID int64
}

func setupAPIKeyTest(t *testing.T) *apiKeyTestContext {
	testDB := testhelpers.GetTestDB(t)
	tc := &apiKeyTestContext{
		t:      t,
		testDB: testDB,
		repo:   NewAPIKeyRepository(testDB.DB),
		userID: testhelpers.CreateTestUser(t, testDB.DB, "apikey_repo_user"),
	}
	tc.cleanup()
	return tc
}

func (tc *apiKeyTestContext) cleanup() {
	tc.t.Helper()
	_, err := tc.testDB.DB.Pool.Exec(context.Background(),
		"DELETE FROM api_keys WHERE user_id = $1", tc.userID)
	if err != nil {
		tc.t.Fatalf("failed to clean up api keys: %v", err)
	}
}

func testKeyHash(seed string) string {
	sum := sha256.Sum256([]byte("ak_live_" + seed))
	return hex.EncodeToString(sum[:])
}

func (tc *apiKeyTestContext) createTestKey(ctx context.Context, name string) *models.APIKey {
	tc.t.Helper()
	key := &models.APIKey{
		UserID:  tc.userID,
		KeyName: name,
		KeyHash: testKeyHash(fmt.Sprintf("%s_%d", name, time.Now().UnixNano())),
	}
	if err := tc.repo.Create(ctx, key); err != nil {
		tc.t.Fatalf("failed to create test key: %v", err)
	}
	return key
}

func TestAPIKeyRepository_Create_Success(t *testing.T) {
	tc := setupAPIKeyTest(t)
	ctx := context.Background()

	key := tc.createTestKey(ctx, "scripts")

	if key.ID == 0 {
		t.Error("expected ID to be assigned")
	}
	if !key.IsActive {
		t.Error("expected new key to be active")
	}
	if key.LastUsedAt != nil {
		t.Error("expected new key to have no usage timestamp")
	}
}

func TestAPIKeyRepository_Create_DuplicateHash(t *testing.T) {
	tc := setupAPIKeyTest(t)
	ctx := context.Background()

	hash := testKeyHash("duplicate")
	first := &models.APIKey{UserID: tc.userID, KeyName: "premier", KeyHash: hash}
	if err := tc.repo.Create(ctx, first); err != nil {
		t.Fatalf("failed to create first key: %v", err)
	}

	second := &models.APIKey{UserID: tc.userID, KeyName: "second", KeyHash: hash}
	if err := tc.repo.Create(ctx, second); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate hash, got %v", err)
	}
}

func TestAPIKeyRepository_GetByHash(t *testing.T) {
	tc := setupAPIKeyTest(t)
	ctx := context.Background()

	key := tc.createTestKey(ctx, "lookup")

	fetched, err := tc.repo.GetByHash(ctx, key.KeyHash)
	if err != nil {
		t.Fatalf("failed to get key by hash: %v", err)
	}
	if fetched.ID != key.ID {
		t.Errorf("expected key %d, got %d", key.ID, fetched.ID)
	}
	if !fetched.IsUsable(time.Now()) {
		t.Error("expected fresh key to be usable")
	}

	if _, err := tc.repo.GetByHash(ctx, testKeyHash("unknown")); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown hash, got %v", err)
	}
}

func TestAPIKeyRepository_Revoke(t *testing.T) {
	tc := setupAPIKeyTest(t)
	ctx := context.Background()

	key := tc.createTestKey(ctx, "revocable")

	if err := tc.repo.Revoke(ctx, key.ID, tc.userID); err != nil {
		t.Fatalf("failed to revoke key: %v", err)
	}

	fetched, err := tc.repo.GetByHash(ctx, key.KeyHash)
	if err != nil {
		t.Fatalf("failed to get revoked key: %v", err)
	}
	if fetched.IsUsable(time.Now()) {
		t.Error("expected revoked key to be unusable")
	}

	// Revoked keys cannot be regenerated.
	if err := tc.repo.UpdateHash(ctx, key.ID, tc.userID, testKeyHash("regen")); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound when regenerating revoked key, got %v", err)
	}
}

func TestAPIKeyRepository_Revoke_ScopedToOwner(t *testing.T) {
	tc := setupAPIKeyTest(t)
	ctx := context.Background()

	key := tc.createTestKey(ctx, "protege")

	otherID := testhelpers.CreateTestUser(t, tc.testDB.DB, "apikey_repo_other")
	if err := tc.repo.Revoke(ctx, key.ID, otherID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign key, got %v", err)
	}
}

func TestAPIKeyRepository_UpdateHash_InvalidatesOldKey(t *testing.T) {
	tc := setupAPIKeyTest(t)
	ctx := context.Background()

	key := tc.createTestKey(ctx, "rotated")
	oldHash := key.KeyHash
	newHash := testKeyHash("rotated_new")

	if err := tc.repo.UpdateHash(ctx, key.ID, tc.userID, newHash); err != nil {
		t.Fatalf("failed to update hash: %v", err)
	}

	if _, err := tc.repo.GetByHash(ctx, oldHash); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected old hash to be invalid, got %v", err)
	}
	fetched, err := tc.repo.GetByHash(ctx, newHash)
	if err != nil {
		t.Fatalf("failed to get key by new hash: %v", err)
	}
	if fetched.ID != key.ID {
		t.Errorf("expected key %d, got %d", key.ID, fetched.ID)
	}
}

func TestAPIKeyRepository_TouchLastUsed(t *testing.T) {
	tc := setupAPIKeyTest(t)
	ctx := context.Background()

	key := tc.createTestKey(ctx, "touched")
	usedAt := time.Now()

	if err := tc.repo.TouchLastUsed(ctx, key.ID, usedAt); err != nil {
		t.Fatalf("failed to touch key: %v", err)
	}

	fetched, err := tc.repo.GetByHash(ctx, key.KeyHash)
	if err != nil {
		t.Fatalf("failed to get key: %v", err)
	}
	if fetched.LastUsedAt == nil {
		t.Fatal("expected last_used_at to be set")
	}
	if fetched.LastUsedAt.Sub(usedAt).Abs() > time.Second {
		t.Errorf("expected last_used_at near %v, got %v", usedAt, *fetched.LastUsedAt)
	}
}

func TestAPIKeyRepository_ListByUser_NewestFirst(t *testing.T) {
	tc := setupAPIKeyTest(t)
	ctx := context.Background()

	tc.createTestKey(ctx, "ancien")
	time.Sleep(10 * time.Millisecond)
	newest := tc.createTestKey(ctx, "recent")

	keys, err := tc.repo.ListByUser(ctx, tc.userID)
	if err != nil {
		t.Fatalf("failed to list keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if keys[0].ID != newest.ID {
		t.Error("expected newest key first")
	}
}
