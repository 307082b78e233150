package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/models"
	"github.com/plumelab/plume-engine/pkg/prompts"
)

// mockSessionRepo implements repositories.SessionRepository for testing.
type mockSessionRepo struct {
	sessions    []*models.ChatSession
	nextID      int64
	createErr   error
	updateCalls int
	touchCalls  int
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.ChatSession) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	session.ID = m.nextID
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt
	copied := *session
	m.sessions = append(m.sessions, &copied)
	return nil
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id, userID int64) (*models.ChatSession, error) {
	for _, s := range m.sessions {
		if s.ID == id && s.UserID == userID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSessionRepo) GetByShareToken(ctx context.Context, token uuid.UUID) (*models.ChatSession, error) {
	for _, s := range m.sessions {
		if s.IsShared && s.ShareToken != nil && *s.ShareToken == token {
			copied := *s
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSessionRepo) ListByUser(ctx context.Context, userID int64) ([]*models.ChatSession, error) {
	var sessions []*models.ChatSession
	for i := len(m.sessions) - 1; i >= 0; i-- {
		if m.sessions[i].UserID == userID {
			copied := *m.sessions[i]
			sessions = append(sessions, &copied)
		}
	}
	return sessions, nil
}

func (m *mockSessionRepo) UpdateSharing(ctx context.Context, session *models.ChatSession) error {
	m.updateCalls++
	for _, s := range m.sessions {
		if s.ID == session.ID && s.UserID == session.UserID {
			s.IsShared = session.IsShared
			s.ShareToken = session.ShareToken
			s.UpdatedAt = time.Now()
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockSessionRepo) Touch(ctx context.Context, id int64) error {
	m.touchCalls++
	for _, s := range m.sessions {
		if s.ID == id {
			s.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (m *mockSessionRepo) Delete(ctx context.Context, id, userID int64) error {
	for i, s := range m.sessions {
		if s.ID == id && s.UserID == userID {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// mockMessageRepo implements repositories.MessageRepository for testing.
type mockMessageRepo struct {
	messages  []*models.Message
	nextID    int64
	createErr error
}

func (m *mockMessageRepo) Create(ctx context.Context, message *models.Message) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	message.ID = m.nextID
	message.CreatedAt = time.Now()
	copied := *message
	m.messages = append(m.messages, &copied)
	return nil
}

func (m *mockMessageRepo) ListBySession(ctx context.Context, sessionID int64) ([]*models.Message, error) {
	var messages []*models.Message
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			copied := *msg
			messages = append(messages, &copied)
		}
	}
	return messages, nil
}

func (m *mockMessageRepo) ListRecent(ctx context.Context, sessionID int64, n int) ([]*models.Message, error) {
	all, _ := m.ListBySession(ctx, sessionID)
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

func seedMessage(repo *mockMessageRepo, sessionID int64, role, moduleType, content string) {
	repo.nextID++
	repo.messages = append(repo.messages, &models.Message{
		ID:         repo.nextID,
		SessionID:  sessionID,
		Role:       role,
		ModuleType: moduleType,
		Content:    content,
		CreatedAt:  time.Now(),
	})
}

func newSessionTestService(t *testing.T) (SessionService, *mockSessionRepo, *mockMessageRepo) {
	t.Helper()
	sessions := &mockSessionRepo{}
	messages := &mockMessageRepo{}
	return NewSessionService(sessions, messages, zap.NewNop()), sessions, messages
}

func TestSessionService_Create_DefaultsTitle(t *testing.T) {
	svc, _, _ := newSessionTestService(t)

	session, err := svc.Create(context.Background(), 7, "   ")

	require.NoError(t, err)
	assert.Equal(t, int64(1), session.ID)
	assert.Equal(t, int64(7), session.UserID)
	assert.Equal(t, prompts.DefaultSessionTitle, session.Title)
	assert.False(t, session.IsShared)
	assert.Nil(t, session.ShareToken)
}

func TestSessionService_Create_TrimsTitle(t *testing.T) {
	svc, _, _ := newSessionTestService(t)

	session, err := svc.Create(context.Background(), 7, "  Relecture du chapitre 2  ")

	require.NoError(t, err)
	assert.Equal(t, "Relecture du chapitre 2", session.Title)
}

func TestSessionService_Create_TitleTooLong(t *testing.T) {
	svc, _, _ := newSessionTestService(t)

	_, err := svc.Create(context.Background(), 7, strings.Repeat("é", 201))

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestSessionService_Get_ReturnsTranscript(t *testing.T) {
	svc, _, messages := newSessionTestService(t)

	session, err := svc.Create(context.Background(), 7, "Questions de cours")
	require.NoError(t, err)
	seedMessage(messages, session.ID, models.RoleUser, models.ModuleGeneral, "Bonjour")
	seedMessage(messages, session.ID, models.RoleAssistant, models.ModuleGeneral, "Bonjour, comment puis-je aider ?")
	seedMessage(messages, 99, models.RoleUser, models.ModuleGeneral, "Autre session")

	got, transcript, err := svc.Get(context.Background(), 7, session.ID)

	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	require.Len(t, transcript, 2)
	assert.Equal(t, "Bonjour", transcript[0].Content)
	assert.Equal(t, models.RoleAssistant, transcript[1].Role)
}

func TestSessionService_Get_NotFound(t *testing.T) {
	svc, _, _ := newSessionTestService(t)

	_, _, err := svc.Get(context.Background(), 7, 42)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionService_List_NewestFirst(t *testing.T) {
	svc, _, _ := newSessionTestService(t)

	_, err := svc.Create(context.Background(), 7, "Ancienne")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), 7, "Récente")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), 8, "Autre utilisateur")
	require.NoError(t, err)

	sessions, err := svc.List(context.Background(), 7)

	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "Récente", sessions[0].Title)
	assert.Equal(t, "Ancienne", sessions[1].Title)
}

func TestSessionService_Share_MintsToken(t *testing.T) {
	svc, _, _ := newSessionTestService(t)

	session, err := svc.Create(context.Background(), 7, "Mémoire")
	require.NoError(t, err)

	shared, err := svc.Share(context.Background(), 7, session.ID)

	require.NoError(t, err)
	assert.True(t, shared.IsShared)
	require.NotNil(t, shared.ShareToken)

	resolved, transcript, err := svc.Shared(context.Background(), *shared.ShareToken)
	require.NoError(t, err)
	assert.Equal(t, session.ID, resolved.ID)
	assert.Empty(t, transcript)
}

func TestSessionService_Share_KeepsExistingToken(t *testing.T) {
	svc, _, _ := newSessionTestService(t)

	session, err := svc.Create(context.Background(), 7, "Mémoire")
	require.NoError(t, err)

	first, err := svc.Share(context.Background(), 7, session.ID)
	require.NoError(t, err)
	second, err := svc.Share(context.Background(), 7, session.ID)
	require.NoError(t, err)

	assert.Equal(t, *first.ShareToken, *second.ShareToken, "re-sharing keeps handed-out links valid")
}

func TestSessionService_Unshare_RevokesToken(t *testing.T) {
	svc, _, _ := newSessionTestService(t)

	session, err := svc.Create(context.Background(), 7, "Mémoire")
	require.NoError(t, err)
	shared, err := svc.Share(context.Background(), 7, session.ID)
	require.NoError(t, err)
	token := *shared.ShareToken

	require.NoError(t, svc.Unshare(context.Background(), 7, session.ID))

	_, _, err = svc.Shared(context.Background(), token)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "a revoked token no longer resolves")

	got, _, err := svc.Get(context.Background(), 7, session.ID)
	require.NoError(t, err)
	assert.False(t, got.IsShared)
	assert.Nil(t, got.ShareToken)
}

func TestSessionService_Unshare_NeverSharedIsNoop(t *testing.T) {
	svc, sessions, _ := newSessionTestService(t)

	session, err := svc.Create(context.Background(), 7, "Mémoire")
	require.NoError(t, err)

	require.NoError(t, svc.Unshare(context.Background(), 7, session.ID))
	assert.Equal(t, 0, sessions.updateCalls)
}

func TestSessionService_Reshare_MintsFreshToken(t *testing.T) {
	svc, _, _ := newSessionTestService(t)

	session, err := svc.Create(context.Background(), 7, "Mémoire")
	require.NoError(t, err)
	first, err := svc.Share(context.Background(), 7, session.ID)
	require.NoError(t, err)
	oldToken := *first.ShareToken
	require.NoError(t, svc.Unshare(context.Background(), 7, session.ID))

	second, err := svc.Share(context.Background(), 7, session.ID)

	require.NoError(t, err)
	require.NotNil(t, second.ShareToken)
	assert.NotEqual(t, oldToken, *second.ShareToken, "revocation invalidates old links for good")
	_, _, err = svc.Shared(context.Background(), oldToken)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionService_Share_NotFound(t *testing.T) {
	svc, _, _ := newSessionTestService(t)

	_, err := svc.Share(context.Background(), 7, 42)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionService_Share_WrongUser(t *testing.T) {
	svc, _, _ := newSessionTestService(t)

	session, err := svc.Create(context.Background(), 7, "Mémoire")
	require.NoError(t, err)

	_, err = svc.Share(context.Background(), 8, session.ID)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSessionService_Delete_RemovesSession(t *testing.T) {
	svc, _, _ := newSessionTestService(t)

	session, err := svc.Create(context.Background(), 7, "Brouillon")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), 7, session.ID))

	sessions, err := svc.List(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	assert.ErrorIs(t, svc.Delete(context.Background(), 7, session.ID), apperrors.ErrNotFound)
}

func TestSessionService_ExportMarkdown_RendersTranscript(t *testing.T) {
	svc, _, messages := newSessionTestService(t)

	session, err := svc.Create(context.Background(), 7, "Relecture du chapitre 2")
	require.NoError(t, err)
	seedMessage(messages, session.ID, models.RoleUser, models.ModuleGeneral, "Peux-tu corriger ma phrase ?")
	seedMessage(messages, session.ID, models.RoleAssistant, models.ModuleGrammar, "Voici la correction.")
	seedMessage(messages, session.ID, models.RoleAssistant, models.ModuleGeneral, "Autre chose ?")

	markdown, err := svc.ExportMarkdown(context.Background(), 7, session.ID)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(markdown, "# Relecture du chapitre 2\n"), "export opens with the title heading")
	assert.Contains(t, markdown, "*Conversation du ")
	assert.Contains(t, markdown, "**Vous** :\n\nPeux-tu corriger ma phrase ?")
	assert.Contains(t, markdown, "**Plume** *(correction)* :\n\nVoici la correction.")
	assert.Contains(t, markdown, "**Plume** :\n\nAutre chose ?")
	assert.Equal(t, 3, strings.Count(markdown, "\n---\n"), "one separator per message")
}

func TestSessionService_ExportMarkdown_NotFound(t *testing.T) {
	svc, _, _ := newSessionTestService(t)

	_, err := svc.ExportMarkdown(context.Background(), 7, 42)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
