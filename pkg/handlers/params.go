package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ParseDocumentID extracts and validates the document ID from the request path.
// Returns the parsed id and true on success, or 0 and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseDocumentID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	return parseID(w, r, "id", "Invalid document ID", logger)
}

// ParseSessionID extracts and validates the chat session ID from the request
// path. Returns the parsed id and true on success, or 0 and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseSessionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	return parseID(w, r, "id", "Invalid session ID", logger)
}

// ParseKeyID extracts and validates the API key ID from the request path.
// Returns the parsed id and true on success, or 0 and false on error
// (after writing an error response).
// Expects path parameter: id
func ParseKeyID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	return parseID(w, r, "id", "Invalid key ID", logger)
}

// ParseShareToken extracts and validates the share token from the request
// path. Returns the parsed token and true on success, or uuid.Nil and false
// on error (after writing an error response).
// Expects path parameter: token
func ParseShareToken(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	token, err := uuid.Parse(r.PathValue("token"))
	if err != nil {
		if err := ErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid share token"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return uuid.Nil, false
	}
	return token, true
}

// parseID is the internal helper that does the actual parsing work.
// IDs are positive base-10 integers; anything else is a 400.
func parseID(w http.ResponseWriter, r *http.Request, pathParam, errorMessage string, logger *zap.Logger) (int64, bool) {
	idStr := r.PathValue(pathParam)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		if err := ErrorResponse(w, r, http.StatusBadRequest, "BAD_REQUEST", errorMessage); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return 0, false
	}
	return id, true
}

// clientIP resolves the originating client address for audit events,
// preferring the first hop recorded by a proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return fwd
	}
	return r.RemoteAddr
}
