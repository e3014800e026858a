package types

import "time"

// Role is the coarse authorization tag carried by a user and its tokens.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents an account of the dashboard.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the opaque identifier assigned by the registry. It never
	// changes once assigned.
	ID string `json:"id"`

	// Email is the login name. It is unique across the registry and
	// compared literally (case-sensitive).
	Email string `json:"email"`

	// Name is the user's display or full name.
	Name string `json:"name"`

	// Role indicates the user's authorization level ("admin" or "user").
	Role Role `json:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-"`

	// Profile holds dashboard preferences. Nil until the user sets any.
	Profile *Profile `json:"profile,omitempty"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Sanitized returns a copy of u without password material.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	u.Profile = u.Profile.Clone()
	return u
}

// Profile is the set of preferences a user can tune from the dashboard.
type Profile struct {
	Theme         string                  `json:"theme,omitempty" yaml:"theme"`
	Language      string                  `json:"language,omitempty" yaml:"language"`
	Timezone      string                  `json:"timezone,omitempty" yaml:"timezone"`
	Notifications NotificationPreferences `json:"notifications" yaml:"notifications"`
}

// NotificationPreferences selects which notifications a user receives.
type NotificationPreferences struct {
	Email   bool `json:"email" yaml:"email"`
	Billing bool `json:"billing" yaml:"billing"`
}

// Clone returns a deep copy of p. A nil profile clones to nil.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// UserUpdate is a partial update of a user. Nil fields are left unchanged.
// The ID is not part of the update and therefore cannot be changed.
type UserUpdate struct {
	Email        *string  `json:"email,omitempty"`
	Name         *string  `json:"name,omitempty"`
	Role         *Role    `json:"role,omitempty"`
	PasswordHash *string  `json:"-"`
	Profile      *Profile `json:"profile,omitempty"`
}
