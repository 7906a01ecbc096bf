// Package user defines the user model used throughout the application,
// particularly for authentication, session tracking and user management.
package user

import "time"

// Authentication holds the derived credential material of a user.
// The password itself is never stored: PasswordHash is always the digest
// of the plaintext password combined with Salt.
type Authentication struct {
	// Salt is the random per-user secret mixed into the password digest.
	Salt string `json:"salt"`

	// PasswordHash is the salted one-way digest of the user's password.
	PasswordHash string `json:"password_hash"`
}

// User represents a system user.
// It contains the unique identifier, the unique email address used as a
// natural key, the credential material and the current session state.
type User struct {
	// ID is the unique identifier of the user, meaning a UUID.
	ID string `json:"id"`

	// Email is unique across all users and is used for registration
	// conflict checks and login lookups.
	Email string `json:"email"`

	// Username is the display name supplied at registration.
	Username string `json:"username"`

	// Authentication carries the salt and password digest.
	Authentication Authentication `json:"authentication"`

	// SessionToken is the current session secret, empty when the user
	// has no active session. Sessions are not a separate entity - the
	// token embedded here is looked up by exact match.
	SessionToken string `json:"session_token,omitempty"`

	// SessionExpiry is the moment the current session stops being valid.
	SessionExpiry time.Time `json:"session_expiry,omitempty"`
}

// HasActiveSession reports whether the user carries a session token which
// has not expired at the given moment.
func (u *User) HasActiveSession(now time.Time) bool {
	return u.SessionToken != "" && now.Before(u.SessionExpiry)
}
