package llm

import (
	"net/http"

	"github.com/plumelab/plume-engine/pkg/logging"
)

const requestIDHeader = "X-Request-Id"

// contextAwareTransport forwards the request correlation ID to model
// backends so gateway traces can be joined with engine logs.
type contextAwareTransport struct {
	base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *contextAwareTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if id := logging.CorrelationID(req.Context()); id != "" {
		req = req.Clone(req.Context())
		req.Header.Set(requestIDHeader, id)
	}
	return t.base.RoundTrip(req)
}

// newHTTPClient returns an HTTP client that propagates correlation IDs.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &contextAwareTransport{base: http.DefaultTransport},
	}
}
