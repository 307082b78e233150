package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/services"
)

// FeedbackHandler handles feedback HTTP requests.
type FeedbackHandler struct {
	feedback services.FeedbackService
	logger   *zap.Logger
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(feedback services.FeedbackService, logger *zap.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		feedback: feedback,
		logger:   logger,
	}
}

// RegisterRoutes registers the feedback handler's routes on the given mux.
func (h *FeedbackHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/feedback", authMiddleware.RequireAuth(h.Record))
	mux.HandleFunc("GET /api/feedback/stats", authMiddleware.RequireAuth(h.Stats))
}

// Record handles POST /api/feedback.
// Stores explicit feedback that feeds the per-user parameter adapter.
func (h *FeedbackHandler) Record(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	var req services.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		if err := ErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	entry, err := h.feedback.Record(r.Context(), userID, &req)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: entry}); err != nil {
		h.logger.Error("Failed to encode feedback response", zap.Error(err))
	}
}

// Stats handles GET /api/feedback/stats.
// Returns the caller's per-task feedback aggregates.
func (h *FeedbackHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	stats, err := h.feedback.Stats(r.Context(), userID)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: stats}); err != nil {
		h.logger.Error("Failed to encode stats response", zap.Error(err))
	}
}
