package types

import "time"

// Session is the server-side record created at login.
// UserID is a weak reference: the session does not own the user.
type Session struct {
	// ID is the opaque, unique session identifier.
	ID string `json:"id"`

	// UserID references the user that logged in.
	UserID string `json:"userId"`

	// CreatedAt is when the session was recorded.
	CreatedAt time.Time `json:"createdAt"`

	// ExpiresAt is the instant after which the sweeper may remove the session.
	ExpiresAt time.Time `json:"expiresAt"`
}

// ExpiredAt reports whether the session is past its expiry at t.
func (s Session) ExpiredAt(t time.Time) bool {
	return s.ExpiresAt.Before(t)
}
