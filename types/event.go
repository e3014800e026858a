package types

import "time"

// EventType names an auth lifecycle event.
type EventType string

const (
	EventUserRegistered EventType = "user.registered"
	EventUserLoggedIn   EventType = "user.logged_in"
)

// AuthEvent is published after a successful registration or login.
type AuthEvent struct {
	Type       EventType `json:"type"`
	UserID     string    `json:"userId"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	OccurredAt time.Time `json:"occurredAt"`
}
