package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/audit"
	"github.com/plumelab/plume-engine/pkg/auth"
	"github.com/plumelab/plume-engine/pkg/models"
	"github.com/plumelab/plume-engine/pkg/services"
)

// RegisterRequest represents the request body for account creation.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents the request body for credential login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token alongside the account. The same
// token also lands in the SPA session cookie, so browser clients can ignore
// the body copy.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
}

// AuthHandler handles account and session HTTP requests.
type AuthHandler struct {
	users   services.UserService
	auditor *audit.SecurityAuditor
	logger  *zap.Logger
}

// NewAuthHandler creates a new auth handler. auditor may be nil to disable
// security audit events.
func NewAuthHandler(users services.UserService, auditor *audit.SecurityAuditor, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:   users,
		auditor: auditor,
		logger:  logger,
	}
}

// RegisterRoutes registers the auth handler's routes on the given mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("POST /api/auth/logout", authMiddleware.RequireAuth(h.Logout))
	mux.HandleFunc("GET /api/auth/me", authMiddleware.RequireAuth(h.Me))
}

// Register handles POST /api/auth/register.
// Creates the account and signs it in, returning the user and a token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		if err := ErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			if err := ErrorResponse(w, r, http.StatusConflict, "CONFLICT", "Username or email already in use"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to encode register response", zap.Error(err))
	}
}

// Login handles POST /api/auth/login.
// Verifies credentials, returns a token and sets the SPA session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		if err := ErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			if h.auditor != nil {
				h.auditor.LogAuthFailure(r.Context(), "invalid credentials", clientIP(r))
			}
			if err := ErrorResponse(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid username or password"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	// Cookie trouble is not fatal: the body still carries the token.
	if err := auth.SetSessionToken(r, w, result.Token); err != nil {
		h.logger.Warn("Failed to set session cookie", zap.Error(err))
	}

	response := LoginResponse{
		AccessToken: result.Token,
		TokenType:   "bearer",
		ExpiresAt:   result.ExpiresAt,
		User:        result.User,
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to encode login response", zap.Error(err))
	}
}

// Logout handles POST /api/auth/logout.
// Clears the SPA session cookie. Bearer tokens stay valid until expiry.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := auth.ClearSession(r, w); err != nil {
		h.logger.Warn("Failed to clear session cookie", zap.Error(err))
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true}); err != nil {
		h.logger.Error("Failed to encode logout response", zap.Error(err))
	}
}

// Me handles GET /api/auth/me.
// Returns the account behind the request credential.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.RequireUserID(r.Context())
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		ServiceErrorResponse(w, r, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: user}); err != nil {
		h.logger.Error("Failed to encode user response", zap.Error(err))
	}
}
