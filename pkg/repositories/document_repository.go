package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/database"
	"github.com/plumelab/plume-engine/pkg/models"
)

// DocumentRepository defines the interface for document data access.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id, userID int64) (*models.Document, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.Document, error)
	MarkProcessed(ctx context.Context, id int64) error
	Delete(ctx context.Context, id, userID int64) error
}

// documentRepository implements DocumentRepository using PostgreSQL.
type documentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db *database.DB) DocumentRepository {
	return &documentRepository{db: db}
}

const documentColumns = `id, user_id, filename, file_path, file_type, processed, created_at`

// Create inserts a document, filling in its id and creation time.
func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	doc.CreatedAt = time.Now()

	query := `
		INSERT INTO documents (user_id, filename, file_path, file_type, processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.db.Pool.QueryRow(ctx, query,
		doc.UserID,
		doc.Filename,
		doc.FilePath,
		doc.FileType,
		doc.Processed,
		doc.CreatedAt,
	).Scan(&doc.ID)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

// GetByID retrieves a document owned by the given user.
func (r *documentRepository) GetByID(ctx context.Context, id, userID int64) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND user_id = $2`

	var doc models.Document
	err := r.db.Pool.QueryRow(ctx, query, id, userID).Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Filename,
		&doc.FilePath,
		&doc.FileType,
		&doc.Processed,
		&doc.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}

// ListByUser retrieves the user's documents, newest first.
func (r *documentRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		err := rows.Scan(
			&doc.ID,
			&doc.UserID,
			&doc.Filename,
			&doc.FilePath,
			&doc.FileType,
			&doc.Processed,
			&doc.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, &doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	return docs, nil
}

// MarkProcessed flags a document as chunked and indexed.
func (r *documentRepository) MarkProcessed(ctx context.Context, id int64) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE documents SET processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark document processed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes a document owned by the given user.
func (r *documentRepository) Delete(ctx context.Context, id, userID int64) error {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Ensure documentRepository implements DocumentRepository at compile time.
var _ DocumentRepository = (*documentRepository)(nil)
