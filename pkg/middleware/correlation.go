package middleware

import (
	"net/http"

	"github.com/plumelab/plume-engine/pkg/logging"
)

// CorrelationHeader carries the request correlation id on both directions.
const CorrelationHeader = "X-Correlation-ID"

// Correlation returns middleware that tags every request with a correlation id.
// An inbound X-Correlation-ID is honored so ids survive proxy hops; otherwise a
// fresh one is minted. The id lands in the request context and is echoed on the
// response so clients can quote it in bug reports.
func Correlation() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(CorrelationHeader)
			if id == "" || len(id) > 64 {
				id = logging.NewCorrelationID()
			}
			w.Header().Set(CorrelationHeader, id)
			next.ServeHTTP(w, r.WithContext(logging.WithCorrelationID(r.Context(), id)))
		})
	}
}
