package domain

import (
	"regexp"
	"strings"
	"time"
)

// Role is a coarse capability label used for authorization.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleSales     Role = "sales"
	RoleInventory Role = "inventory"
)

// Roles lists every assignable role in display order.
var Roles = []Role{RoleAdmin, RoleSales, RoleInventory}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ValidEmail reports whether email matches the local@domain.tld shape accepted at registration.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// User models an account holder.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks the invariants a user must satisfy before it is persisted.
// Role is optional; when set it must be one of Roles.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return NewValidationError("Enter username")
	}
	if !ValidEmail(u.Email) {
		return NewValidationError("please enter a valid email")
	}
	if u.PasswordHash == "" {
		return NewValidationError("Enter password")
	}
	if u.Role != "" && !u.Role.Valid() {
		return NewValidationError("`" + string(u.Role) + "` is not a valid role")
	}
	return nil
}

// ProfileUpdate carries the optional non-credential fields of an update.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name *string
	Role *Role
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.Role == nil
}

// RoleStats is the aggregate user count, total and per role.
type RoleStats struct {
	Total     int64 `json:"totalUsers"`
	Admin     int64 `json:"admin"`
	Sales     int64 `json:"sales"`
	Inventory int64 `json:"inventory"`
}

// Add folds count users holding role into the stats.
// Users without a recognised role only contribute to Total.
func (s *RoleStats) Add(role Role, count int64) {
	s.Total += count
	switch role {
	case RoleAdmin:
		s.Admin += count
	case RoleSales:
		s.Sales += count
	case RoleInventory:
		s.Inventory += count
	}
}
