package ports

import (
	"context"
	"time"

	"github.com/texresolve/accounts-api/internal/core/domain"
)

// RegisterInput is the DTO passed from the transport layer to Register.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// UpdateInput carries the optional fields of a self-service update.
// Empty strings mean "leave unchanged".
type UpdateInput struct {
	Name     string
	Password string
	Role     string
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	User        *domain.User
	AccessToken string
	ExpiresAt   time.Time
}

// AccountService defines the account use cases.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Update(ctx context.Context, caller domain.Identity, in UpdateInput) error
	Delete(ctx context.Context, caller domain.Identity) error
	List(ctx context.Context) ([]*domain.User, error)
	Analytics(ctx context.Context) (*domain.RoleStats, error)
}
