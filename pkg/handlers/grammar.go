package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/services"
)

// CorrectRequest represents the request body for grammar correction.
type CorrectRequest struct {
	Text string `json:"text"`
}

// GrammarHandler handles grammar correction HTTP requests.
type GrammarHandler struct {
	grammar services.GrammarService
	logger  *zap.Logger
}

// NewGrammarHandler creates a new grammar handler.
func NewGrammarHandler(grammar services.GrammarService, logger *zap.Logger) *GrammarHandler {
	return &GrammarHandler{
		grammar: grammar,
		logger:  logger,
	}
}

// RegisterRoutes registers the grammar handler's routes on the given mux.
// Correction works for anonymous callers, so the route is optional-auth.
func (h *GrammarHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/grammar/correct", authMiddleware.OptionalAuth(h.Correct))
}

// Correct handles POST /api/grammar/correct.
// Runs the text through the grammar backend and returns the corrected text
// with the list of applied corrections.
func (h *GrammarHandler) Correct(w http.ResponseWriter, r *http.Request) {
	var req CorrectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		if err := ErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.grammar.Correct(r.Context(), req.Text)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to encode correction response", zap.Error(err))
	}
}
