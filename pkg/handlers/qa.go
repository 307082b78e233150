package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/services"
)

// AnswerRequest represents the request body for question answering.
// Context is optional; authenticated callers without one get context
// assembled from their indexed documents.
type AnswerRequest struct {
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
}

// QAHandler handles question answering HTTP requests.
type QAHandler struct {
	qa     services.QAService
	logger *zap.Logger
}

// NewQAHandler creates a new QA handler.
func NewQAHandler(qa services.QAService, logger *zap.Logger) *QAHandler {
	return &QAHandler{
		qa:     qa,
		logger: logger,
	}
}

// RegisterRoutes registers the QA handler's routes on the given mux.
// Anonymous callers are allowed but only with explicit context.
func (h *QAHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/qa/answer", authMiddleware.OptionalAuth(h.Answer))
}

// Answer handles POST /api/qa/answer.
func (h *QAHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		if err := ErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.qa.Answer(r.Context(), auth.GetUserID(r.Context()), req.Question, req.Context)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to encode answer response", zap.Error(err))
	}
}
