package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/prompts"
	"github.com/plumelab/plume-engine/pkg/services"
)

// ReformulateRequest represents the request body for text reformulation.
// An empty style selects the academic register.
type ReformulateRequest struct {
	Text  string `json:"text"`
	Style string `json:"style,omitempty"`
}

// StylesResponse lists the supported reformulation registers.
type StylesResponse struct {
	Styles []prompts.Style `json:"styles"`
}

// ReformulationHandler handles reformulation HTTP requests.
type ReformulationHandler struct {
	reformulation services.ReformulationService
	logger        *zap.Logger
}

// NewReformulationHandler creates a new reformulation handler.
func NewReformulationHandler(reformulation services.ReformulationService, logger *zap.Logger) *ReformulationHandler {
	return &ReformulationHandler{
		reformulation: reformulation,
		logger:        logger,
	}
}

// RegisterRoutes registers the reformulation handler's routes on the given
// mux. The style catalogue is public; reformulation itself is optional-auth
// so anonymous callers get default decoding parameters.
func (h *ReformulationHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/reformulation/reformulate", authMiddleware.OptionalAuth(h.Reformulate))
	mux.HandleFunc("GET /api/reformulation/styles", h.Styles)
}

// Reformulate handles POST /api/reformulation/reformulate.
func (h *ReformulationHandler) Reformulate(w http.ResponseWriter, r *http.Request) {
	var req ReformulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		if err := ErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.reformulation.Reformulate(r.Context(), auth.GetUserID(r.Context()), req.Text, req.Style)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to encode reformulation response", zap.Error(err))
	}
}

// Styles handles GET /api/reformulation/styles.
func (h *ReformulationHandler) Styles(w http.ResponseWriter, r *http.Request) {
	response := StylesResponse{Styles: prompts.Styles()}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to encode styles response", zap.Error(err))
	}
}
