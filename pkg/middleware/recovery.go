package middleware

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/plumelab/plume-engine/pkg/logging"
)

// Recovery returns middleware that converts panics into INTERNAL_ERROR
// responses. The panic value and stack are logged; the client only sees the
// generic envelope with the correlation id.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if logger != nil {
					logger.Error("Panic while serving request",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("correlation_id", logging.CorrelationID(r.Context())),
						zap.Stack("stack"),
					)
				}
				// The handler may have started writing already; in that case
				// the connection is beyond repair and this write is a no-op.
				writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// writeError emits the flat error envelope used across the API.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error_code":     code,
		"message":        message,
		"correlation_id": logging.CorrelationID(r.Context()),
	})
}
