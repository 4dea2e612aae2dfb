package ports

import (
	"context"
	"time"

	"github.com/texresolve/accounts-api/internal/core/domain"
)

// UserRepository defines persistence operations for user accounts.
// Lookups that match nothing return domain.ErrUserNotFound.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// UpdatePassword replaces the stored digest only.
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	// UpdateProfile applies the non-nil fields of upd.
	UpdateProfile(ctx context.Context, id string, upd domain.ProfileUpdate, at time.Time) error
	Delete(ctx context.Context, id string) error
	// List returns every user projected to name, email and role.
	List(ctx context.Context) ([]*domain.User, error)
	CountByRole(ctx context.Context) (*domain.RoleStats, error)
}
