//go:build integration

package repositories

import (
	"context"
	"fmt"
	"testing"

	"github.com/plumelab/plume-engine/pkg/models"
	"github.com/plumelab/plume-engine/pkg/testhelpers"
)

// messageTestContext holds test dependencies for message repository tests.
type messageTestContext struct {
	t         *testing.T
	testDB    *testhelpers.TestDB
	repo      MessageRepository
	sessionID int64
}

func setupMessageTest(t *testing.T) *messageTestContext {
	testDB := testhelpers.GetTestDB(t)
	userID := testhelpers.CreateTestUser(t, testDB.DB, "message_repo_user")

	sessions := NewSessionRepository(testDB.DB)
	session := &models.ChatSession{UserID: userID, Title: "Messages"}
	if err := sessions.Create(context.Background(), session); err != nil {
		t.Fatalf("failed to create test session: %v", err)
	}

	return &messageTestContext{
		t:         t,
		testDB:    testDB,
		repo:      NewMessageRepository(testDB.DB),
		sessionID: session.ID,
	}
}

func (tc *messageTestContext) createTestMessage(ctx context.Context, role, content string) *models.Message {
	tc.t.Helper()
	msg := &models.Message{
		SessionID:  tc.sessionID,
		Role:       role,
		Content:    content,
		ModuleType: models.ModuleGeneral,
	}
	if err := tc.repo.Create(ctx, msg); err != nil {
		tc.t.Fatalf("failed to create test message: %v", err)
	}
	return msg
}

func TestMessageRepository_Create_DefaultsMetadata(t *testing.T) {
	tc := setupMessageTest(t)
	ctx := context.Background()

	msg := tc.createTestMessage(ctx, models.RoleUser, "Corrige ma phrase")

	if msg.ID == 0 {
		t.Error("expected ID to be assigned")
	}
	if msg.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	fetched, err := tc.repo.ListBySession(ctx, tc.sessionID)
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	last := fetched[len(fetched)-1]
	if last.Metadata == nil {
		t.Error("expected nil metadata to be stored as empty map")
	}
}

func TestMessageRepository_MetadataRoundTrip(t *testing.T) {
	tc := setupMessageTest(t)
	ctx := context.Background()

	msg := &models.Message{
		SessionID:  tc.sessionID,
		Role:       models.RoleAssistant,
		Content:    "Voici la correction.",
		ModuleType: models.ModuleGrammar,
		Metadata: models.JSONBMap{
			"cached":      true,
			"corrections": float64(3),
			"model":       "plume-fr",
		},
	}
	if err := tc.repo.Create(ctx, msg); err != nil {
		t.Fatalf("failed to create message: %v", err)
	}

	fetched, err := tc.repo.ListBySession(ctx, tc.sessionID)
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}

	var found *models.Message
	for _, m := range fetched {
		if m.ID == msg.ID {
			found = m
		}
	}
	if found == nil {
		t.Fatal("expected message in listing")
	}
	if found.Metadata["cached"] != true {
		t.Errorf("expected cached=true in metadata, got %v", found.Metadata["cached"])
	}
	if found.Metadata["corrections"] != float64(3) {
		t.Errorf("expected corrections=3 in metadata, got %v", found.Metadata["corrections"])
	}
	if found.ModuleType != models.ModuleGrammar {
		t.Errorf("expected module type grammar, got %s", found.ModuleType)
	}
}

func TestMessageRepository_ListBySession_Chronological(t *testing.T) {
	tc := setupMessageTest(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		tc.createTestMessage(ctx, role, fmt.Sprintf("message %d", i))
	}

	messages, err := tc.repo.ListBySession(ctx, tc.sessionID)
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(messages) < 4 {
		t.Fatalf("expected at least 4 messages, got %d", len(messages))
	}

	for i := 1; i < len(messages); i++ {
		if messages[i].ID < messages[i-1].ID {
			t.Fatal("expected messages in insertion order")
		}
	}
}

func TestMessageRepository_ListRecent_LastNInOrder(t *testing.T) {
	tc := setupMessageTest(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 6; i++ {
		msg := tc.createTestMessage(ctx, models.RoleUser, fmt.Sprintf("tour %d", i))
		ids = append(ids, msg.ID)
	}

	recent, err := tc.repo.ListRecent(ctx, tc.sessionID, 3)
	if err != nil {
		t.Fatalf("failed to list recent messages: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(recent))
	}

	// The last three, oldest of them first.
	want := ids[len(ids)-3:]
	for i, msg := range recent {
		if msg.ID != want[i] {
			t.Errorf("position %d: expected id %d, got %d", i, want[i], msg.ID)
		}
	}
}
