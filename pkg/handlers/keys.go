package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/services"
)

// CreateKeyRequest represents the request body for API key creation.
// expires_at is optional; absent keys never expire.
type CreateKeyRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// APIKeysHandler handles API key management HTTP requests.
type APIKeysHandler struct {
	keys   services.APIKeyService
	logger *zap.Logger
}

// NewAPIKeysHandler creates a new API keys handler.
func NewAPIKeysHandler(keys services.APIKeyService, logger *zap.Logger) *APIKeysHandler {
	return &APIKeysHandler{
		keys:   keys,
		logger: logger,
	}
}

// RegisterRoutes registers the API keys handler's routes on the given mux.
func (h *APIKeysHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/keys/", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/keys/", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("DELETE /api/keys/{id}", authMiddleware.RequireAuth(h.Revoke))
	mux.HandleFunc("POST /api/keys/{id}/regenerate", authMiddleware.RequireAuth(h.Regenerate))
}

// Create handles POST /api/keys/.
// The response carries the plaintext key; it is shown exactly once.
func (h *APIKeysHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		if err := ErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	created, err := h.keys.Create(r.Context(), userID, req.Name, req.ExpiresAt)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: created}); err != nil {
		h.logger.Error("Failed to encode key response", zap.Error(err))
	}
}

// List handles GET /api/keys/.
// Lists the caller's keys without any plaintext material.
func (h *APIKeysHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	keys, err := h.keys.List(r.Context(), userID)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: keys}); err != nil {
		h.logger.Error("Failed to encode keys response", zap.Error(err))
	}
}

// Revoke handles DELETE /api/keys/{id}.
func (h *APIKeysHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	keyID, ok := ParseKeyID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.keys.Revoke(r.Context(), userID, keyID); err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true}); err != nil {
		h.logger.Error("Failed to encode revoke response", zap.Error(err))
	}
}

// Regenerate handles POST /api/keys/{id}/regenerate.
// Swaps the key material and returns the new plaintext exactly once. The
// old plaintext stops authenticating immediately.
func (h *APIKeysHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	keyID, ok := ParseKeyID(w, r, h.logger)
	if !ok {
		return
	}

	regenerated, err := h.keys.Regenerate(r.Context(), userID, keyID)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: regenerated}); err != nil {
		h.logger.Error("Failed to encode regenerate response", zap.Error(err))
	}
}
