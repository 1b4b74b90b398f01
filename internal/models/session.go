package models

import "time"

// Session is the portal's record of who is logged in. It is written only by the
// login, registration and logout flows and read by every guarded route.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Role        UserRole  `json:"role"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Token       string    `json:"token"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the session carries enough identity to be used.
func (s *Session) Valid(now time.Time) bool {
	if s == nil || s.ID == "" || s.UserID == "" || !s.Role.Valid() {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// HomePath is the dashboard a user lands on after login.
func (s *Session) HomePath() string {
	switch s.Role {
	case RoleAdmin:
		return "/admin/dashboard"
	case RoleFaculty:
		return "/faculty/dashboard"
	default:
		return "/student/dashboard"
	}
}

// Preferences are per (course, student) UI conveniences: the last viewed tab and
// free-form notes.
type Preferences struct {
	LastTab string `json:"last_tab"`
	Notes   string `json:"notes"`
}
