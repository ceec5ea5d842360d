package types

import "time"

// User represents an account in the system.
type User struct {
	// ID is the unique identifier of the user.
	ID int64 `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Role indicates the user's system-wide role (e.g., "user").
	// This is distinct from the per-bill access role.
	Role string `json:"role" db:"role"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Session is an opaque server-side login session. Sessions slide:
// a resolve within a day of expiry pushes the expiry out again.
type Session struct {
	// ID is the unique identifier of the session row.
	ID int64 `json:"id" db:"id"`

	// Token is the opaque unique value presented by clients.
	Token string `json:"token" db:"token"`

	// UserID references the user this session authenticates.
	UserID int64 `json:"user_id" db:"user_id"`

	// ExpiresAt is the moment after which the session no longer resolves.
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}
