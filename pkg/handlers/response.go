package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/apperrors"
	"github.com/plumelab/plume-engine/pkg/ingest"
	"github.com/plumelab/plume-engine/pkg/logging"
	"github.com/plumelab/plume-engine/pkg/tasks"
)

// ApiResponse wraps data in the format expected by the frontend.
type ApiResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse writes a JSON error response carrying the request's
// correlation id and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error_code":     errorCode,
		"message":        message,
		"correlation_id": logging.CorrelationID(r.Context()),
	})
}

// ServiceErrorResponse maps a service-layer error to its transport shape and
// writes it. Validation messages are user-facing and pass through verbatim;
// everything unrecognized becomes a 500 with the cause logged, not returned.
func ServiceErrorResponse(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, code, message := classifyServiceError(err)
	if status == http.StatusInternalServerError {
		logger.Error("Unhandled service error",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	if writeErr := ErrorResponse(w, r, status, code, message); writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}

func classifyServiceError(err error) (status int, code, message string) {
	switch {
	case apperrors.IsValidation(err):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, ingest.ErrUnsupportedType):
		return http.StatusBadRequest, "BAD_REQUEST", err.Error()
	case errors.Is(err, ingest.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "Access denied"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Resource not found"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "CONFLICT", "Resource already exists"
	case errors.Is(err, apperrors.ErrRateLimited):
		return http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests"
	case errors.Is(err, apperrors.ErrModelInference):
		return http.StatusBadGateway, "MODEL_INFERENCE_ERROR", "The language model is unavailable"
	case errors.Is(err, apperrors.ErrRetrievalUnavailable):
		return http.StatusServiceUnavailable, "RETRIEVAL_UNAVAILABLE", "Document retrieval is unavailable"
	case errors.Is(err, tasks.ErrQueueFull):
		return http.StatusServiceUnavailable, "INTERNAL_ERROR", "The server is busy, try again shortly"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred"
	}
}
