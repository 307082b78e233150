package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/audit"
	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/config"
	"github.com/plumelab/plume-engine/pkg/ingest"
	"github.com/plumelab/plume-engine/pkg/services"
)

// DocumentsHandler handles document upload and management HTTP requests.
type DocumentsHandler struct {
	documents services.DocumentService
	auditor   *audit.SecurityAuditor
	cfg       config.IngestConfig
	logger    *zap.Logger
}

// NewDocumentsHandler creates a new documents handler. auditor may be nil to
// disable security audit events.
func NewDocumentsHandler(documents services.DocumentService, auditor *audit.SecurityAuditor, cfg config.IngestConfig, logger *zap.Logger) *DocumentsHandler {
	return &DocumentsHandler{
		documents: documents,
		auditor:   auditor,
		cfg:       cfg,
		logger:    logger,
	}
}

// RegisterRoutes registers the documents handler's routes on the given mux.
// All document routes require an authenticated owner.
func (h *DocumentsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/documents/upload", authMiddleware.RequireAuth(h.Upload))
	mux.HandleFunc("GET /api/documents/", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/documents/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("DELETE /api/documents/{id}", authMiddleware.RequireAuth(h.Delete))
}

// Upload handles POST /api/documents/upload.
// Accepts a multipart form with a "file" part, stores the document and
// schedules extraction and indexing in the background. The response carries
// the document with processed=false; polling the list shows completion.
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	// Cap the request body before multipart parsing touches it. The service
	// enforces the same limit per file; this stops oversized bodies earlier.
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.rejectUpload(w, r, "", "body exceeds upload limit")
			return
		}
		h.logger.Warn("Invalid multipart upload", zap.Error(err))
		if err := ErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "Expected a multipart form with a 'file' part"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	defer file.Close()

	document, err := h.documents.Upload(r.Context(), userID, header.Filename, file)
	if err != nil {
		if errors.Is(err, ingest.ErrUnsupportedType) || errors.Is(err, ingest.ErrTooLarge) {
			if h.auditor != nil {
				h.auditor.LogUploadRejected(r.Context(), header.Filename, err.Error(), clientIP(r))
			}
		}
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusAccepted, ApiResponse{Success: true, Data: document}); err != nil {
		h.logger.Error("Failed to encode upload response", zap.Error(err))
	}
}

// List handles GET /api/documents/.
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	documents, err := h.documents.List(r.Context(), userID)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: documents}); err != nil {
		h.logger.Error("Failed to encode documents response", zap.Error(err))
	}
}

// Get handles GET /api/documents/{id}.
func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	documentID, ok := ParseDocumentID(w, r, h.logger)
	if !ok {
		return
	}

	document, err := h.documents.Get(r.Context(), userID, documentID)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: document}); err != nil {
		h.logger.Error("Failed to encode document response", zap.Error(err))
	}
}

// Delete handles DELETE /api/documents/{id}.
// Removes the database rows, the stored file and the index entries.
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	documentID, ok := ParseDocumentID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.documents.Delete(r.Context(), userID, documentID); err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true}); err != nil {
		h.logger.Error("Failed to encode delete response", zap.Error(err))
	}
}

// multipartOverhead leaves room for multipart boundaries and headers so a
// file exactly at the limit still parses.
const multipartOverhead = 16 << 10

// rejectUpload writes the 413 and records the audit event.
func (h *DocumentsHandler) rejectUpload(w http.ResponseWriter, r *http.Request, filename, reason string) {
	if h.auditor != nil {
		h.auditor.LogUploadRejected(r.Context(), filename, reason, clientIP(r))
	}
	if err := ErrorResponse(w, r, http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", "Upload exceeds the size limit"); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
