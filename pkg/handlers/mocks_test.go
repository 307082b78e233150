package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plumelab/plume-engine/pkg/auth"
)

// withUser returns the request carrying an authenticated identity, the way
// the auth middleware leaves it for handlers.
func withUser(r *http.Request, userID int64) *http.Request {
	identity := &auth.Identity{UserID: userID, Username: "marie", Method: auth.MethodToken}
	return r.WithContext(context.WithValue(r.Context(), auth.IdentityKey, identity))
}

// decodeData unmarshals a success envelope and decodes its data payload into
// out.
func decodeData(t *testing.T, body []byte, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	require.True(t, envelope.Success, "expected a success envelope")
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
}

// decodeError unmarshals an error envelope.
func decodeError(t *testing.T, body []byte) map[string]string {
	t.Helper()
	var envelope map[string]string
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope
}
