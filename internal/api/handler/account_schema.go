package handler

import "github.com/texresolve/accounts-api/internal/core/domain"

// ErrorResponse is the error envelope returned on all 4xx/5xx responses.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// --- Request / Response types ---

type registerRequest struct {
	Name     string `json:"name"     validate:"required"`
	Email    string `json:"email"    validate:"required,account_email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"     validate:"omitempty,account_role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role" validate:"omitempty,account_role"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type loginResponse struct {
	Name        string      `json:"name"`
	Role        domain.Role `json:"role,omitempty"`
	AccessToken string      `json:"accesstoken"`
}

type userSummary struct {
	ID    string      `json:"_id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role,omitempty"`
}

type usersResponse struct {
	Users []userSummary `json:"users"`
}

type statsResponse struct {
	Stats domain.RoleStats `json:"stats"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func toUserSummaries(users []*domain.User) []userSummary {
	out := make([]userSummary, 0, len(users))
	for _, u := range users {
		out = append(out, userSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role})
	}
	return out
}
