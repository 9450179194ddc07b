package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern defines the valid format for usernames:
// alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// emailPattern is a pragmatic email check. Deliverability is not
// verified; this only rejects obviously malformed addresses.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// maxUsernameLength is the maximum allowed username length.
const maxUsernameLength = 64

// IsValidUsername checks if a username meets format requirements.
// Usernames must be 1-64 characters, alphanumeric with dots, hyphens, underscores.
func IsValidUsername(username string) bool {
	return len(username) <= maxUsernameLength && usernamePattern.MatchString(username)
}

// IsValidEmail checks if an email address is plausibly well-formed.
func IsValidEmail(email string) bool {
	return email != "" && emailPattern.MatchString(email)
}

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleUser is a household member. Sees only the rooms an admin has
	// granted and can toggle devices inside them.
	RoleUser Role = "user"

	// RoleAdmin has full system control: boards, rooms, devices, users,
	// discovery, statistics. Bypasses room scoping.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of valid user roles.
var ValidRoles = []Role{RoleUser, RoleAdmin}

// IsValidUserRole returns true if the role is a valid role for a user account.
func IsValidUserRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// User represents an authenticated human account.
// Email is the login identity; username is the display handle.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoomAccess represents a user's visibility grant for a specific room.
type RoomAccess struct {
	UserID    string    `json:"user_id"`
	RoomID    string    `json:"room_id"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RoomScope holds the resolved room access for a user request context.
// A nil RoomScope means unrestricted access (admin).
type RoomScope struct {
	// RoomIDs is the list of rooms the user can see and operate devices in.
	RoomIDs []string
}

// CanAccessRoom returns true if the room is in the scope's accessible rooms.
func (rs *RoomScope) CanAccessRoom(roomID string) bool {
	if rs == nil {
		return true // unrestricted
	}
	for _, id := range rs.RoomIDs {
		if id == roomID {
			return true
		}
	}
	return false
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrEmailExists        = errors.New("email already registered")
	ErrTokenExpired       = errors.New("token has expired")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrForbidden          = errors.New("insufficient permissions")
	ErrSelfModification   = errors.New("cannot modify own account in this way")
)
