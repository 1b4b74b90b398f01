package models

import "strings"

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleFaculty UserRole = "faculty"
	RoleAdmin   UserRole = "admin"
)

// Valid reports whether r is one of the portal roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalises a role string coming from the backend or an identity
// provider. Unknown values map to student.
func ParseRole(raw string) UserRole {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "administrator":
		return RoleAdmin
	case "faculty", "teacher", "instructor", "educator":
		return RoleFaculty
	default:
		return RoleStudent
	}
}

// User is the identity returned by the backend on login and registration.
type User struct {
	ID      string   `json:"_id"`
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Role    UserRole `json:"role"`
	Phone   string   `json:"phone,omitempty"`
	Blocked bool     `json:"isBlocked,omitempty"`
}

// AuthResponse is the backend payload for /users/login and /users/register.
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}
