package auth

import (
	"context"
	"fmt"

	"github.com/plumelab/plume-engine/pkg/apperrors"
)

// GetUserID extracts the user id from the identity in the context.
// Returns 0 on anonymous requests. Use this on optional-auth paths that
// degrade gracefully without a user.
func GetUserID(ctx context.Context) int64 {
	identity, ok := GetIdentity(ctx)
	if !ok || identity == nil {
		return 0
	}
	return identity.UserID
}

// RequireUserID extracts the user id from the context and fails if the
// request is anonymous. Use this when the operation needs an owner.
func RequireUserID(ctx context.Context) (int64, error) {
	userID := GetUserID(ctx)
	if userID == 0 {
		return 0, fmt.Errorf("no identity in context: %w", apperrors.ErrUnauthorized)
	}
	return userID, nil
}

// IsAuthenticated reports whether the context carries an identity.
func IsAuthenticated(ctx context.Context) bool {
	return GetUserID(ctx) != 0
}
