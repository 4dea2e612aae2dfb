package ports

import (
	"context"
	"time"

	"github.com/texresolve/accounts-api/internal/core/domain"
)

// PasswordHasher hashes credentials at rest.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	// Verify reports whether plain matches digest. A mismatch is (false, nil);
	// an error means digest is malformed.
	Verify(plain, digest string) (bool, error)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(subjectID string, role domain.Role) (token string, expiresAt time.Time, err error)
}

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(token string) (*domain.TokenClaims, error)
}

type TokenService interface {
	TokenIssuer
	TokenVerifier
}

// CredentialLedger remembers when an account's credentials last changed so
// tokens issued before that moment can be refused.
type CredentialLedger interface {
	MarkChanged(ctx context.Context, userID string, at time.Time) error
	// ChangedAt returns the last mark; ok is false when none is recorded.
	ChangedAt(ctx context.Context, userID string) (at time.Time, ok bool, err error)
}
