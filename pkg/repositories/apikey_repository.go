package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/database"
	"github.com/plumelab/plume-engine/pkg/models"
)

// APIKeyRepository defines the interface for API key data access.
type APIKeyRepository interface {
	Create(ctx context.Context, key *models.APIKey) error
	ListByUser(ctx context.Context, userID int64) ([]*models.APIKey, error)
	GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	// Revoke deactivates the key. Revocation is permanent; regeneration
	// issues a fresh hash on an active key instead.
	Revoke(ctx context.Context, id, userID int64) error
	// UpdateHash swaps the stored digest, invalidating the old plaintext key.
	UpdateHash(ctx context.Context, id, userID int64, keyHash string) error
	TouchLastUsed(ctx context.Context, id int64, usedAt time.Time) error
}

// apiKeyRepository implements APIKeyRepository using PostgreSQL.
type apiKeyRepository struct {
	db *database.DB
}

// NewAPIKeyRepository creates a new API key repository.
func NewAPIKeyRepository(db *database.DB) APIKeyRepository {
	return &apiKeyRepository{db: db}
}

const apiKeyColumns = "id, user_id, key_name, key_hash, is_active, expires_at, created_at, last_used_at"

// Create inserts a new API key.
func (r *apiKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	key.CreatedAt = time.Now()
	key.IsActive = true

	query := `
		INSERT INTO api_keys (user_id, key_name, key_hash, is_active, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.Pool.QueryRow(ctx, query,
		key.UserID,
		key.KeyName,
		key.KeyHash,
		key.IsActive,
		key.ExpiresAt,
		key.CreatedAt,
	).Scan(&key.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("api key already exists: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create api key: %w", err)
	}

	return nil
}

// ListByUser returns the user's keys, newest first.
func (r *apiKeyRepository) ListByUser(ctx context.Context, userID int64) ([]*models.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating api keys: %w", err)
	}

	return keys, nil
}

// GetByHash looks up a key by its stored digest. Callers decide usability
// via models.APIKey.IsUsable.
func (r *apiKeyRepository) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	query := `
		SELECT ` + apiKeyColumns + `
		FROM api_keys
		WHERE key_hash = $1`

	key, err := scanAPIKey(r.db.Pool.QueryRow(ctx, query, keyHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("api key not found: %w", apperrors.ErrNotFound)
		}
		return nil, err
	}

	return key, nil
}

// Revoke deactivates the key owned by the user.
func (r *apiKeyRepository) Revoke(ctx context.Context, id, userID int64) error {
	query := `
		UPDATE api_keys
		SET is_active = FALSE
		WHERE id = $1 AND user_id = $2`

	tag, err := r.db.Pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("api key not found: %w", apperrors.ErrNotFound)
	}

	return nil
}

// UpdateHash replaces the stored digest for an active key owned by the user.
func (r *apiKeyRepository) UpdateHash(ctx context.Context, id, userID int64, keyHash string) error {
	query := `
		UPDATE api_keys
		SET key_hash = $3
		WHERE id = $1 AND user_id = $2 AND is_active = TRUE`

	tag, err := r.db.Pool.Exec(ctx, query, id, userID, keyHash)
	if err != nil {
		return fmt.Errorf("failed to update api key hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("api key not found: %w", apperrors.ErrNotFound)
	}

	return nil
}

// TouchLastUsed records when the key last authenticated a request.
func (r *apiKeyRepository) TouchLastUsed(ctx context.Context, id int64, usedAt time.Time) error {
	query := `
		UPDATE api_keys
		SET last_used_at = $2
		WHERE id = $1`

	if _, err := r.db.Pool.Exec(ctx, query, id, usedAt); err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}

	return nil
}

func scanAPIKey(row pgx.Row) (*models.APIKey, error) {
	var key models.APIKey
	err := row.Scan(
		&key.ID,
		&key.UserID,
		&key.KeyName,
		&key.KeyHash,
		&key.IsActive,
		&key.ExpiresAt,
		&key.CreatedAt,
		&key.LastUsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan api key: %w", err)
	}
	return &key, nil
}

// Ensure apiKeyRepository implements APIKeyRepository at compile time.
var _ APIKeyRepository = (*apiKeyRepository)(nil)
