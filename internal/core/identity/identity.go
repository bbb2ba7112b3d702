package identity

import (
	"context"
	"strings"
)

type ownerKey struct{}

// WithOwner returns a context carrying an already-verified owner id.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

// OwnerFromContext returns the verified owner id, if any.
func OwnerFromContext(ctx context.Context) (string, bool) {
	ownerID, ok := ctx.Value(ownerKey{}).(string)
	if !ok || strings.TrimSpace(ownerID) == "" {
		return "", false
	}
	return ownerID, true
}
