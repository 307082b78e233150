package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/services"
)

// SuggestRequest represents the request body for writing suggestions.
type SuggestRequest struct {
	Text string `json:"text"`
}

// SuggestionsHandler handles writing suggestion HTTP requests.
type SuggestionsHandler struct {
	suggestions services.SuggestionService
	logger      *zap.Logger
}

// NewSuggestionsHandler creates a new suggestions handler.
func NewSuggestionsHandler(suggestions services.SuggestionService, logger *zap.Logger) *SuggestionsHandler {
	return &SuggestionsHandler{
		suggestions: suggestions,
		logger:      logger,
	}
}

// RegisterRoutes registers the suggestions handler's routes on the given mux.
func (h *SuggestionsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/suggestions", authMiddleware.OptionalAuth(h.Suggest))
}

// Suggest handles POST /api/suggestions.
// Returns up to five French writing suggestions for the draft excerpt.
func (h *SuggestionsHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		if err := ErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.suggestions.Suggest(r.Context(), auth.GetUserID(r.Context()), req.Text)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to encode suggestions response", zap.Error(err))
	}
}
