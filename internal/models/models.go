package models

import (
	"github.com/patric-chuzhbe/usersvc/internal/user"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UpdateUserRequest struct {
	Username string `json:"username"`
}

// PublicUser is the outward representation of a user. It deliberately
// omits the salt, the password hash and the session token so the
// credential material never leaves the service.
type PublicUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// NewPublicUser redacts the credential fields of the given user.
func NewPublicUser(usr *user.User) PublicUser {
	return PublicUser{
		ID:       usr.ID,
		Email:    usr.Email,
		Username: usr.Username,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// InternalStats is the payload of the trusted-subnet-only stats endpoint.
type InternalStats struct {
	Users          int64 `json:"users"`
	ActiveSessions int64 `json:"active_sessions"`
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)
