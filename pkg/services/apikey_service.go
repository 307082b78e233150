package services

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/models"
	"github.com/plumelab/plume-engine/pkg/repositories"
)

const maxKeyNameRunes = 100

// CreatedAPIKey pairs a stored key with its plaintext. The plaintext is
// shown exactly once; only its digest is persisted.
type CreatedAPIKey struct {
	Key       *models.APIKey `json:"key"`
	Plaintext string         `json:"api_key"`
}

// APIKeyService manages programmatic access keys.
type APIKeyService interface {
	Create(ctx context.Context, userID int64, name string, expiresAt *time.Time) (*CreatedAPIKey, error)
	List(ctx context.Context, userID int64) ([]*models.APIKey, error)
	// Revoke permanently deactivates a key.
	Revoke(ctx context.Context, userID, keyID int64) error
	// Regenerate swaps the key material on an active key, invalidating the
	// old plaintext. Revoked keys cannot be regenerated.
	Regenerate(ctx context.Context, userID, keyID int64) (*CreatedAPIKey, error)
}

type apiKeyService struct {
	repo   repositories.APIKeyRepository
	logger *zap.Logger
}

// NewAPIKeyService creates a new api key service.
func NewAPIKeyService(repo repositories.APIKeyRepository, logger *zap.Logger) APIKeyService {
	return &apiKeyService{
		repo:   repo,
		logger: logger,
	}
}

func (s *apiKeyService) Create(ctx context.Context, userID int64, name string, expiresAt *time.Time) (*CreatedAPIKey, error) {
	if isBlank(name) {
		return nil, apperrors.Validation("key name is required")
	}
	if utf8.RuneCountInString(name) > maxKeyNameRunes {
		return nil, apperrors.Validation(fmt.Sprintf("key name exceeds the maximum of %d characters", maxKeyNameRunes))
	}
	if expiresAt != nil && expiresAt.Before(time.Now()) {
		return nil, apperrors.Validation("expiry must be in the future")
	}

	plaintext, hash, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate api key: %w", err)
	}

	key := &models.APIKey{
		UserID:    userID,
		KeyName:   name,
		KeyHash:   hash,
		IsActive:  true,
		ExpiresAt: expiresAt,
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, err
	}

	s.logger.Info("api key created",
		zap.Int64("key_id", key.ID),
		zap.Int64("user_id", userID),
		zap.String("key_name", name))

	return &CreatedAPIKey{Key: key, Plaintext: plaintext}, nil
}

func (s *apiKeyService) List(ctx context.Context, userID int64) ([]*models.APIKey, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *apiKeyService) Revoke(ctx context.Context, userID, keyID int64) error {
	if err := s.repo.Revoke(ctx, keyID, userID); err != nil {
		return err
	}
	s.logger.Info("api key revoked",
		zap.Int64("key_id", keyID),
		zap.Int64("user_id", userID))
	return nil
}

func (s *apiKeyService) Regenerate(ctx context.Context, userID, keyID int64) (*CreatedAPIKey, error) {
	plaintext, hash, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate api key: %w", err)
	}

	if err := s.repo.UpdateHash(ctx, keyID, userID, hash); err != nil {
		return nil, err
	}

	key, err := s.repo.GetByHash(ctx, hash)
	if err != nil {
		return nil, err
	}

	s.logger.Info("api key regenerated",
		zap.Int64("key_id", keyID),
		zap.Int64("user_id", userID))

	return &CreatedAPIKey{Key: key, Plaintext: plaintext}, nil
}

// Ensure apiKeyService implements APIKeyService at compile time.
var _ APIKeyService = (*apiKeyService)(nil)
