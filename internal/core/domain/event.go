package domain

import "time"

// AccountEventType names a change to an account.
type AccountEventType string

const (
	EventUserRegistered AccountEventType = "user.registered"
	EventUserUpdated    AccountEventType = "user.updated"
	EventUserDeleted    AccountEventType = "user.deleted"
)

// AccountEvent is published after an account write succeeds.
type AccountEvent struct {
	ID         string           `json:"id"`
	Type       AccountEventType `json:"type"`
	UserID     string           `json:"user_id"`
	Email      string           `json:"email,omitempty"`
	Role       Role             `json:"role,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
