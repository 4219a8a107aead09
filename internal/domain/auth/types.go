package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import "time"

// Role represents an application's authorization role.
// Keep string form for easy persistence and cookies.
// Valid values are defined as constants below.
type Role string

const (
	RoleAdministrator  Role = "administrator"
	RoleDepartmentHead Role = "department_head"
	RoleFaculty        Role = "faculty"
	RoleStaff          Role = "staff"
)

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdministrator, RoleDepartmentHead, RoleFaculty, RoleStaff:
		return true
	}
	return false
}

// Identity is the normalized claim set produced by a successful
// authentication, before role resolution adds authorization semantics.
// Both provider adapters map their provider-specific payloads into this
// shape; DeclaredRoles, Phone, and DepartmentID come from the directory
// augmentation and may be empty when the directory is unavailable or its
// record is partial.
type Identity struct {
	UserID        string // stable subject identifier from the authenticating source
	Email         string
	DisplayName   string
	DeclaredRoles []string
	Phone         string
	DepartmentID  string
	ExpiresAt     time.Time // absolute expiry from the provider token
}

// Session is the server-side record we persist for an authenticated user.
// ID is an opaque session identifier (e.g., random URL-safe string).
// OTPVerified starts false on every sign-in and is flipped server-side only,
// never from a client-supplied value.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	Role         Role      `json:"role"`
	DepartmentID string    `json:"department_id,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	OTPVerified  bool      `json:"otp_verified"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// HasPhone reports whether the session carries a phone number for the
// second-factor challenge.
func (s Session) HasPhone() bool { return s.Phone != "" }
