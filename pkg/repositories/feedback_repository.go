package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/plumelab/plume-engine/pkg/database"
	"github.com/plumelab/plume-engine/pkg/models"
)

// FeedbackRepository defines the interface for feedback data access.
type FeedbackRepository interface {
	// Create appends an entry and prunes the user's window beyond
	// models.FeedbackRetention in the same transaction.
	Create(ctx context.Context, entry *models.FeedbackEntry) error
	// ListRecent returns the user's latest entries for a task type, newest
	// first, capped at limit.
	ListRecent(ctx context.Context, userID int64, taskType string, limit int) ([]*models.FeedbackEntry, error)
	// Stats aggregates the user's feedback per task type.
	Stats(ctx context.Context, userID int64) ([]*models.FeedbackStats, error)
}

// feedbackRepository implements FeedbackRepository using PostgreSQL.
type feedbackRepository struct {
	db *database.DB
}

// NewFeedbackRepository creates a new feedback repository.
func NewFeedbackRepository(db *database.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

// Create appends a feedback entry and prunes rows past the retention window.
func (r *feedbackRepository) Create(ctx context.Context, entry *models.FeedbackEntry) error {
	entry.CreatedAt = time.Now()
	if entry.Metadata == nil {
		entry.Metadata = models.JSONBMap{}
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	insertQuery := `
		INSERT INTO feedback_entries (user_id, task_type, feedback_type, rating, comment, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err = tx.QueryRow(ctx, insertQuery,
		entry.UserID,
		entry.TaskType,
		entry.FeedbackType,
		entry.Rating,
		entry.Comment,
		entry.Metadata,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to create feedback entry: %w", err)
	}

	pruneQuery := `
		DELETE FROM feedback_entries
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM feedback_entries
			WHERE user_id = $1
			ORDER BY id DESC
			LIMIT $2
		)`

	if _, err = tx.Exec(ctx, pruneQuery, entry.UserID, models.FeedbackRetention); err != nil {
		return fmt.Errorf("failed to prune feedback window: %w", err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListRecent returns the user's latest entries for a task type, newest first.
func (r *feedbackRepository) ListRecent(ctx context.Context, userID int64, taskType string, limit int) ([]*models.FeedbackEntry, error) {
	query := `
		SELECT id, user_id, task_type, feedback_type, rating, comment, metadata, created_at
		FROM feedback_entries
		WHERE user_id = $1 AND task_type = $2
		ORDER BY id DESC
		LIMIT $3`

	rows, err := r.db.Pool.Query(ctx, query, userID, taskType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var entries []*models.FeedbackEntry
	for rows.Next() {
		var entry models.FeedbackEntry
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.TaskType,
			&entry.FeedbackType,
			&entry.Rating,
			&entry.Comment,
			&entry.Metadata,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback: %w", err)
	}

	return entries, nil
}

// Stats aggregates the user's feedback per task type. Thumbs map onto the
// rating scale (positive 4, negative 2) so the average is comparable across
// feedback types.
func (r *feedbackRepository) Stats(ctx context.Context, userID int64) ([]*models.FeedbackStats, error) {
	query := `
		SELECT task_type,
		       COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE feedback_type = 'positive') AS positive,
		       COUNT(*) FILTER (WHERE feedback_type = 'negative') AS negative,
		       COUNT(*) FILTER (WHERE feedback_type = 'rating') AS ratings,
		       COALESCE(AVG(CASE
		           WHEN feedback_type = 'rating' THEN rating
		           WHEN feedback_type = 'positive' THEN 4
		           WHEN feedback_type = 'negative' THEN 2
		       END)::float8, 3) AS average_score
		FROM feedback_entries
		WHERE user_id = $1
		GROUP BY task_type
		ORDER BY task_type`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate feedback: %w", err)
	}
	defer rows.Close()

	var stats []*models.FeedbackStats
	for rows.Next() {
		var s models.FeedbackStats
		err := rows.Scan(&s.TaskType, &s.Total, &s.Positive, &s.Negative, &s.Ratings, &s.AverageScore)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback stats: %w", err)
		}
		stats = append(stats, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback stats: %w", err)
	}

	return stats, nil
}

// Ensure feedbackRepository implements FeedbackRepository at compile time.
var _ FeedbackRepository = (*feedbackRepository)(nil)
