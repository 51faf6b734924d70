package httpx

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the authenticated caller as asserted by the gateway through
// the X-User-* headers. Services behind the gateway trust these headers;
// the gateway strips any client-supplied copies before injecting its own.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Name   string
}

type identityKey struct{}

// WithIdentity binds the caller identity to the request context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller identity, or false when the request did
// not pass through the identity middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
