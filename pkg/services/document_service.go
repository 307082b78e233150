package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/config"
	"github.com/plumelab/plume-engine/pkg/ingest"
	"github.com/plumelab/plume-engine/pkg/models"
	"github.com/plumelab/plume-engine/pkg/repositories"
	"github.com/plumelab/plume-engine/pkg/tasks"
)

const taskNameIngestion = "document-ingestion"

// ChunkIndexer makes ingested chunks searchable. Implemented by the
// retrieval index; a nil indexer stores and extracts documents without
// making them retrievable.
type ChunkIndexer interface {
	IndexChunks(ctx context.Context, userID int64, chunks []ingest.Chunk) (int, error)
	RemoveDocument(userID, documentID int64) (int, error)
}

// DocumentService manages uploaded documents and their background ingestion.
type DocumentService interface {
	// Upload stores the file, creates the document row and schedules
	// extraction and indexing. The returned document has Processed false;
	// it flips once the background task completes.
	Upload(ctx context.Context, userID int64, filename string, file io.Reader) (*models.Document, error)
	List(ctx context.Context, userID int64) ([]*models.Document, error)
	Get(ctx context.Context, userID, documentID int64) (*models.Document, error)
	Delete(ctx context.Context, userID, documentID int64) error
}

type documentService struct {
	repo     repositories.DocumentRepository
	ingestor *ingest.Ingestor
	indexer  ChunkIndexer
	grammar  GrammarService
	queue    *tasks.Queue
	cfg      config.IngestConfig
	logger   *zap.Logger
}

// NewDocumentService creates a new document service. indexer and grammar may
// be nil; grammar is only consulted when the grammar pass is enabled.
func NewDocumentService(
	repo repositories.DocumentRepository,
	ingestor *ingest.Ingestor,
	indexer ChunkIndexer,
	grammar GrammarService,
	queue *tasks.Queue,
	cfg config.IngestConfig,
	logger *zap.Logger,
) DocumentService {
	return &documentService{
		repo:     repo,
		ingestor: ingestor,
		indexer:  indexer,
		grammar:  grammar,
		queue:    queue,
		cfg:      cfg,
		logger:   logger,
	}
}

// Upload validates and stores an uploaded file, then hands the heavy work
// to the task queue. When the queue rejects the task the upload is rolled
// back so the document never lingers unprocessed.
func (s *documentService) Upload(ctx context.Context, userID int64, filename string, file io.Reader) (*models.Document, error) {
	if isBlank(filename) {
		return nil, apperrors.Validation("filename is required")
	}

	base := filepath.Base(filename)
	fileType, err := ingest.DetectType(base)
	if err != nil {
		return nil, err
	}

	// Read one byte past the cap so an oversized upload is detected
	// without buffering the whole stream.
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: limit is %d bytes", ingest.ErrTooLarge, s.cfg.MaxUploadBytes)
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(s.cfg.UploadDir, fmt.Sprintf("%d_%s", userID, base))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	doc := &models.Document{
		UserID:   userID,
		Filename: base,
		FilePath: path,
		FileType: string(fileType),
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		s.removeFile(path)
		return nil, err
	}

	task := &ingestionTask{
		BaseTask: tasks.NewBaseTask(taskNameIngestion),
		svc:      s,
		doc:      doc,
		data:     data,
	}
	if err := s.queue.Enqueue(task); err != nil {
		if delErr := s.repo.Delete(ctx, doc.ID, userID); delErr != nil {
			s.logger.Warn("failed to roll back document after enqueue rejection",
				zap.Int64("document_id", doc.ID),
				zap.Error(delErr))
		}
		s.removeFile(path)
		return nil, fmt.Errorf("failed to schedule ingestion: %w", err)
	}

	s.logger.Info("document uploaded",
		zap.Int64("document_id", doc.ID),
		zap.Int64("user_id", userID),
		zap.String("filename", base),
		zap.String("file_type", doc.FileType),
		zap.Int("size_bytes", len(data)))

	return doc, nil
}

// List returns the user's documents, newest first.
func (s *documentService) List(ctx context.Context, userID int64) ([]*models.Document, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Get returns one document owned by the user.
func (s *documentService) Get(ctx context.Context, userID, documentID int64) (*models.Document, error) {
	return s.repo.GetByID(ctx, documentID, userID)
}

// Delete removes the document row, the stored file and any indexed chunks.
func (s *documentService) Delete(ctx context.Context, userID, documentID int64) error {
	doc, err := s.repo.GetByID(ctx, documentID, userID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, documentID, userID); err != nil {
		return err
	}

	s.removeFile(doc.FilePath)

	if s.indexer != nil {
		removed, err := s.indexer.RemoveDocument(userID, documentID)
		if err != nil {
			s.logger.Warn("failed to remove document from index",
				zap.Int64("document_id", documentID),
				zap.Error(err))
		} else {
			s.logger.Info("document deleted",
				zap.Int64("document_id", documentID),
				zap.Int64("user_id", userID),
				zap.Int("chunks_removed", removed))
		}
	}

	return nil
}

// process runs in a queue worker: extract, optionally correct, chunk, index.
func (s *documentService) process(ctx context.Context, doc *models.Document, data []byte) error {
	text, err := s.ingestor.Text(doc.Filename, data)
	if err != nil {
		return fmt.Errorf("failed to extract text: %w", err)
	}
	if text == "" {
		s.logger.Info("document has no extractable text",
			zap.Int64("document_id", doc.ID),
			zap.String("filename", doc.Filename))
		return s.repo.MarkProcessed(ctx, doc.ID)
	}

	if s.cfg.GrammarPass && s.grammar != nil {
		// Documents over the grammar length cap fail validation here;
		// the original text is indexed in that case.
		res, err := s.grammar.Correct(ctx, text)
		if err != nil {
			s.logger.Warn("grammar pass failed, indexing original text",
				zap.Int64("document_id", doc.ID),
				zap.Error(err))
		} else {
			text = res.CorrectedText
		}
	}

	chunks := s.ingestor.IngestText(doc.ID, doc.UserID, doc.Filename, text)

	indexed := 0
	if s.indexer != nil && len(chunks) > 0 {
		indexed, err = s.indexer.IndexChunks(ctx, doc.UserID, chunks)
		if err != nil {
			return fmt.Errorf("failed to index document: %w", err)
		}
	}

	if err := s.repo.MarkProcessed(ctx, doc.ID); err != nil {
		return err
	}

	s.logger.Info("document processed",
		zap.Int64("document_id", doc.ID),
		zap.Int64("user_id", doc.UserID),
		zap.Int("chunks", len(chunks)),
		zap.Int("indexed", indexed))

	return nil
}

func (s *documentService) removeFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to remove stored file",
			zap.String("path", path),
			zap.Error(err))
	}
}

// ingestionTask carries one uploaded document through extraction and
// indexing on a queue worker.
type ingestionTask struct {
	tasks.BaseTask
	svc  *documentService
	doc  *models.Document
	data []byte
}

func (t *ingestionTask) Execute(ctx context.Context) error {
	return t.svc.process(ctx, t.doc, t.data)
}

// Ensure interface compliance at compile time.
var (
	_ DocumentService = (*documentService)(nil)
	_ tasks.Task      = (*ingestionTask)(nil)
)
