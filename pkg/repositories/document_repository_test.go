//go:build integration

package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/models"
	"github.com/plumelab/plume-engine/pkg/testhelpers"
)

// documentTestContext holds test dependencies for document repository tests.
type documentTestContext struct {
	t      *testing.T
	testDB *testhelpers.TestDB
	repo   DocumentRepository
	userID int64
}

func setupDocumentTest(t *testing.T) *documentTestContext {
	testDB := testhelpers.GetTestDB(t)
	tc := &documentTestContext{
		t:      t,
		testDB: testDB,
		repo:   NewDocumentRepository(testDB.DB),
		userID: testhelpers.CreateTestUser(t, testDB.DB, "document_repo_user"),
	}
	tc.cleanup()
	return tc
}

func (tc *documentTestContext) cleanup() {
	tc.t.Helper()
	_, err := tc.testDB.DB.Pool.Exec(context.Background(),
		"DELETE FROM documents WHERE user_id = $1", tc.userID)
	if err != nil {
		tc.t.Fatalf("failed to clean up documents: %v", err)
	}
}

func (tc *documentTestContext) createTestDocument(ctx context.Context, filename, fileType string) *models.Document {
	tc.t.Helper()
	doc := &models.Document{
		UserID:   tc.userID,
		Filename: filename,
		FilePath: "uploads/" + filename,
		FileType: fileType,
	}
	if err := tc.repo.Create(ctx, doc); err != nil {
		tc.t.Fatalf("failed to create test document: %v", err)
	}
	return doc
}

func TestDocumentRepository_Create_Success(t *testing.T) {
	tc := setupDocumentTest(t)
	ctx := context.Background()

	doc := tc.createTestDocument(ctx, "cours_histoire.pdf", models.FileTypePDF)

	if doc.ID == 0 {
		t.Error("expected ID to be assigned")
	}
	if doc.Processed {
		t.Error("expected new document to start unprocessed")
	}
	if doc.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestDocumentRepository_MarkProcessed(t *testing.T) {
	tc := setupDocumentTest(t)
	ctx := context.Background()

	doc := tc.createTestDocument(ctx, "notes.txt", models.FileTypeTXT)

	if err := tc.repo.MarkProcessed(ctx, doc.ID); err != nil {
		t.Fatalf("failed to mark processed: %v", err)
	}

	fetched, err := tc.repo.GetByID(ctx, doc.ID, tc.userID)
	if err != nil {
		t.Fatalf("failed to get document: %v", err)
	}
	if !fetched.Processed {
		t.Error("expected document to be processed")
	}

	if err := tc.repo.MarkProcessed(ctx, 999999999); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown document, got %v", err)
	}
}

func TestDocumentRepository_GetByID_ScopedToOwner(t *testing.T) {
	tc := setupDocumentTest(t)
	ctx := context.Background()

	doc := tc.createTestDocument(ctx, "memoire.docx", models.FileTypeDOCX)

	otherID := testhelpers.CreateTestUser(t, tc.testDB.DB, "document_repo_other")
	_, err := tc.repo.GetByID(ctx, doc.ID, otherID)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign document, got %v", err)
	}
}

func TestDocumentRepository_ListByUser_NewestFirst(t *testing.T) {
	tc := setupDocumentTest(t)
	ctx := context.Background()

	tc.createTestDocument(ctx, "ancien.txt", models.FileTypeTXT)
	time.Sleep(10 * time.Millisecond)
	newest := tc.createTestDocument(ctx, "recent.txt", models.FileTypeTXT)

	docs, err := tc.repo.ListByUser(ctx, tc.userID)
	if err != nil {
		t.Fatalf("failed to list documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != newest.ID {
		t.Error("expected newest document first")
	}
}

func TestDocumentRepository_Delete(t *testing.T) {
	tc := setupDocumentTest(t)
	ctx := context.Background()

	doc := tc.createTestDocument(ctx, "brouillon.txt", models.FileTypeTXT)

	if err := tc.repo.Delete(ctx, doc.ID, tc.userID); err != nil {
		t.Fatalf("failed to delete document: %v", err)
	}
	if _, err := tc.repo.GetByID(ctx, doc.ID, tc.userID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected document to be gone, got %v", err)
	}
	if err := tc.repo.Delete(ctx, doc.ID, tc.userID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}
