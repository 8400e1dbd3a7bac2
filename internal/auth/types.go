package auth

import "errors"

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleViewer can read the snapshot and subscribe to change events
	// but cannot send commands or force refreshes.
	RoleViewer Role = "viewer"

	// RoleAdmin has full control: matrix routing, display power,
	// forced refreshes. The admin account is defined in config.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of roles a token may carry.
var ValidRoles = []Role{RoleViewer, RoleAdmin}

// IsValidRole returns true if the role is recognised.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrForbidden          = errors.New("insufficient permissions")
)
