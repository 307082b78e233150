package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/models"
	"github.com/plumelab/plume-engine/pkg/repositories"
)

// bcrypt rejects inputs over 72 bytes, so the cap is bytes, not runes.
const (
	minPasswordRunes = 8
	maxPasswordBytes = 72
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,50}$`)

// AuthResult is an authenticated identity with its bearer token.
type AuthResult struct {
	User      *models.User `json:"user"`
	Token     string       `json:"access_token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// UserService handles account registration and credential checks.
type UserService interface {
	// Register creates an account and signs it in. A username or email
	// already in use returns apperrors.ErrConflict.
	Register(ctx context.Context, username, email, password string) (*AuthResult, error)
	// Login verifies credentials. Unknown usernames and wrong passwords
	// both return apperrors.ErrUnauthorized.
	Login(ctx context.Context, username, password string) (*AuthResult, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type userService struct {
	repo   repositories.UserRepository
	tokens *auth.TokenService
	logger *zap.Logger
}

// NewUserService creates a new user service.
func NewUserService(repo repositories.UserRepository, tokens *auth.TokenService, logger *zap.Logger) UserService {
	return &userService{
		repo:   repo,
		tokens: tokens,
		logger: logger,
	}
}

func (s *userService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if !usernamePattern.MatchString(username) {
		return nil, apperrors.Validation("username must be 3-50 characters of letters, digits, '.', '_' or '-'")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.Validation("email address is invalid")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("username", username))

	return s.authResult(user)
}

func (s *userService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.ErrUnauthorized
	}

	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUnauthorized
		}
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		s.logger.Warn("login failed", zap.String("username", username))
		return nil, apperrors.ErrUnauthorized
	}

	s.logger.Info("user logged in", zap.Int64("user_id", user.ID))

	return s.authResult(user)
}

func (s *userService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *userService) authResult(user *models.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func validatePassword(password string) error {
	if len([]rune(password)) < minPasswordRunes {
		return apperrors.Validation(fmt.Sprintf("password must be at least %d characters", minPasswordRunes))
	}
	if len(password) > maxPasswordBytes {
		return apperrors.Validation(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

// Ensure userService implements UserService at compile time.
var _ UserService = (*userService)(nil)
