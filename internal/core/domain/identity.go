package domain

import (
	"context"
	"time"
)

// Identity is the authenticated caller, as proven by a verified access token.
type Identity struct {
	SubjectID string
	Role      Role
	IssuedAt  time.Time
}

// TokenClaims is the verified payload of an access token.
type TokenClaims struct {
	SubjectID string
	Role      Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Identity projects the claims onto the caller identity.
func (c TokenClaims) Identity() Identity {
	return Identity{SubjectID: c.SubjectID, Role: c.Role, IssuedAt: c.IssuedAt}
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity placed by the auth middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.SubjectID == "" {
		return Identity{}, false
	}
	return id, true
}
