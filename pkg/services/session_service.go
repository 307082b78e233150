package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/models"
	"github.com/plumelab/plume-engine/pkg/prompts"
	"github.com/plumelab/plume-engine/pkg/repositories"
)

const maxSessionTitleRunes = 200

// SessionService owns the chat session lifecycle: creation, listing,
// sharing and export. Message appends happen in the chat service.
type SessionService interface {
	Create(ctx context.Context, userID int64, title string) (*models.ChatSession, error)
	List(ctx context.Context, userID int64) ([]*models.ChatSession, error)
	// Get returns the session and its full transcript in insertion order.
	Get(ctx context.Context, userID, sessionID int64) (*models.ChatSession, []*models.Message, error)
	Delete(ctx context.Context, userID, sessionID int64) error
	// Share marks the session shared and returns it with its token.
	// Re-sharing keeps the existing token.
	Share(ctx context.Context, userID, sessionID int64) (*models.ChatSession, error)
	// Unshare revokes sharing and discards the token. Revoking an unshared
	// session succeeds.
	Unshare(ctx context.Context, userID, sessionID int64) error
	// Shared resolves a share token to its session and transcript without
	// an owner check. Revoked tokens resolve to not found.
	Shared(ctx context.Context, token uuid.UUID) (*models.ChatSession, []*models.Message, error)
	// ExportMarkdown renders the transcript as a Markdown document.
	ExportMarkdown(ctx context.Context, userID, sessionID int64) (string, error)
}

type sessionService struct {
	sessions repositories.SessionRepository
	messages repositories.MessageRepository
	logger   *zap.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(sessions repositories.SessionRepository, messages repositories.MessageRepository, logger *zap.Logger) SessionService {
	return &sessionService{
		sessions: sessions,
		messages: messages,
		logger:   logger,
	}
}

func (s *sessionService) Create(ctx context.Context, userID int64, title string) (*models.ChatSession, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = prompts.DefaultSessionTitle
	}
	if utf8.RuneCountInString(title) > maxSessionTitleRunes {
		return nil, apperrors.Validation(fmt.Sprintf("title exceeds the maximum of %d characters", maxSessionTitleRunes))
	}

	session := &models.ChatSession{
		UserID: userID,
		Title:  title,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("session created",
		zap.Int64("session_id", session.ID),
		zap.Int64("user_id", userID))

	return session, nil
}

func (s *sessionService) List(ctx context.Context, userID int64) ([]*models.ChatSession, error) {
	return s.sessions.ListByUser(ctx, userID)
}

func (s *sessionService) Get(ctx context.Context, userID, sessionID int64) (*models.ChatSession, []*models.Message, error) {
	session, err := s.sessions.GetByID(ctx, sessionID, userID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, messages, nil
}

func (s *sessionService) Delete(ctx context.Context, userID, sessionID int64) error {
	if err := s.sessions.Delete(ctx, sessionID, userID); err != nil {
		return err
	}
	s.logger.Info("session deleted",
		zap.Int64("session_id", sessionID),
		zap.Int64("user_id", userID))
	return nil
}

func (s *sessionService) Share(ctx context.Context, userID, sessionID int64) (*models.ChatSession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	session.Share()
	if err := s.sessions.UpdateSharing(ctx, session); err != nil {
		return nil, err
	}

	// The token itself is a capability; log only the session.
	s.logger.Info("session shared",
		zap.Int64("session_id", sessionID),
		zap.Int64("user_id", userID))

	return session, nil
}

func (s *sessionService) Unshare(ctx context.Context, userID, sessionID int64) error {
	session, err := s.sessions.GetByID(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if !session.IsShared {
		return nil
	}

	session.Unshare()
	if err := s.sessions.UpdateSharing(ctx, session); err != nil {
		return err
	}

	s.logger.Info("session sharing revoked",
		zap.Int64("session_id", sessionID),
		zap.Int64("user_id", userID))

	return nil
}

func (s *sessionService) Shared(ctx context.Context, token uuid.UUID) (*models.ChatSession, []*models.Message, error) {
	session, err := s.sessions.GetByShareToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.messages.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, messages, nil
}

func (s *sessionService) ExportMarkdown(ctx context.Context, userID, sessionID int64) (string, error) {
	session, messages, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}

	turns := make([]prompts.ExportTurn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, prompts.ExportTurn{
			Role:       m.Role,
			ModuleType: m.ModuleType,
			Content:    m.Content,
		})
	}

	return prompts.BuildSessionMarkdown(session.Title, session.CreatedAt, turns), nil
}

// Ensure sessionService implements SessionService at compile time.
var _ SessionService = (*sessionService)(nil)
