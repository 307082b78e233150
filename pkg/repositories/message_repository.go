package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/plumelab/plume-engine/pkg/database"
	"github.com/plumelab/plume-engine/pkg/models"
)

// MessageRepository defines the interface for message data access. Messages
// are append-only; there is no update or single-row delete.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	ListBySession(ctx context.Context, sessionID int64) ([]*models.Message, error)
	// ListRecent returns the last n messages in chronological order, for
	// building model context windows.
	ListRecent(ctx context.Context, sessionID int64, n int) ([]*models.Message, error)
}

// messageRepository implements MessageRepository using PostgreSQL.
type messageRepository struct {
	db *database.DB
}

// NewMessageRepository creates a new message repository.
func NewMessageRepository(db *database.DB) MessageRepository {
	return &messageRepository{db: db}
}

const messageColumns = `id, session_id, role, content, module_type, metadata, created_at`

// Create appends a message, filling in its id and creation time.
func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	message.CreatedAt = time.Now()
	if message.Metadata == nil {
		message.Metadata = models.JSONBMap{}
	}

	query := `
		INSERT INTO messages (session_id, role, content, module_type, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.Pool.QueryRow(ctx, query,
		message.SessionID,
		message.Role,
		message.Content,
		message.ModuleType,
		message.Metadata,
		message.CreatedAt,
	).Scan(&message.ID)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// ListBySession retrieves every message of a session in insertion order.
func (r *messageRepository) ListBySession(ctx context.Context, sessionID int64) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE session_id = $1 ORDER BY id`
	return r.list(ctx, query, sessionID)
}

// ListRecent returns the last n messages in chronological order.
func (r *messageRepository) ListRecent(ctx context.Context, sessionID int64, n int) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM (
			SELECT ` + messageColumns + ` FROM messages
			WHERE session_id = $1
			ORDER BY id DESC
			LIMIT $2
		) recent ORDER BY id`
	return r.list(ctx, query, sessionID, n)
}

func (r *messageRepository) list(ctx context.Context, query string, args ...any) ([]*models.Message, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var message models.Message
	err := row.Scan(
		&message.ID,
		&message.SessionID,
		&message.Role,
		&message.Content,
		&message.ModuleType,
		&message.Metadata,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	return &message, nil
}

// Ensure messageRepository implements MessageRepository at compile time.
var _ MessageRepository = (*messageRepository)(nil)
