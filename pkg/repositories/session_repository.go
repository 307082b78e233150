package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/database"
	"github.com/plumelab/plume-engine/pkg/models"
)

// SessionRepository defines the interface for chat session data access.
// Reads and writes are scoped to the owning user except the share-token
// lookup, which backs the public read-only transcript.
type SessionRepository interface {
	Create(ctx context.Context, session *models.ChatSession) error
	GetByID(ctx context.Context, id, userID int64) (*models.ChatSession, error)
	GetByShareToken(ctx context.Context, token uuid.UUID) (*models.ChatSession, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.ChatSession, error)
	UpdateSharing(ctx context.Context, session *models.ChatSession) error
	Touch(ctx context.Context, id int64) error
	Delete(ctx context.Context, id, userID int64) error
}

// sessionRepository implements SessionRepository using PostgreSQL.
type sessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *database.DB) SessionRepository {
	return &sessionRepository{db: db}
}

const sessionColumns = `id, user_id, title, is_shared, share_token, created_at, updated_at`

// Create inserts a session, filling in its id and timestamps.
func (r *sessionRepository) Create(ctx context.Context, session *models.ChatSession) error {
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	query := `
		INSERT INTO chat_sessions (user_id, title, is_shared, share_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.Pool.QueryRow(ctx, query,
		session.UserID,
		session.Title,
		session.IsShared,
		session.ShareToken,
		session.CreatedAt,
		session.UpdatedAt,
	).Scan(&session.ID)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session owned by the given user.
func (r *sessionRepository) GetByID(ctx context.Context, id, userID int64) (*models.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE id = $1 AND user_id = $2`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, id, userID))
}

// GetByShareToken retrieves a shared session by its share token. Sessions
// that are no longer shared are not found even if a stale token is replayed.
func (r *sessionRepository) GetByShareToken(ctx context.Context, token uuid.UUID) (*models.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE share_token = $1 AND is_shared`
	return r.scanOne(r.db.Pool.QueryRow(ctx, query, token))
}

// ListByUser retrieves the user's sessions, most recently updated first.
func (r *sessionRepository) ListByUser(ctx context.Context, userID int64) ([]*models.ChatSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM chat_sessions WHERE user_id = $1 ORDER BY updated_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.ChatSession
	for rows.Next() {
		session, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// UpdateSharing persists the session's sharing state and token.
func (r *sessionRepository) UpdateSharing(ctx context.Context, session *models.ChatSession) error {
	session.UpdatedAt = time.Now()

	query := `
		UPDATE chat_sessions
		SET is_shared = $1, share_token = $2, updated_at = $3
		WHERE id = $4 AND user_id = $5`

	result, err := r.db.Pool.Exec(ctx, query,
		session.IsShared,
		session.ShareToken,
		session.UpdatedAt,
		session.ID,
		session.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update session sharing: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Touch bumps the session's updated_at, keeping the list ordered by recent
// activity.
func (r *sessionRepository) Touch(ctx context.Context, id int64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE chat_sessions SET updated_at = $1 WHERE id = $2`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// Delete removes a session owned by the given user; messages cascade.
func (r *sessionRepository) Delete(ctx context.Context, id, userID int64) error {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM chat_sessions WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *sessionRepository) scanOne(row pgx.Row) (*models.ChatSession, error) {
	var session models.ChatSession
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Title,
		&session.IsShared,
		&session.ShareToken,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return &session, nil
}

// Ensure sessionRepository implements SessionRepository at compile time.
var _ SessionRepository = (*sessionRepository)(nil)
