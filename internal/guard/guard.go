// Package guard decides whether a role-restricted page may render.
package guard

import (
	"net/url"
	"strings"

	"github.com/SAP-F-2025/course-portal/internal/models"
)

type Action int

const (
	Render Action = iota
	RedirectLogin
	RedirectHome
)

func (a Action) String() string {
	switch a {
	case Render:
		return "render"
	case RedirectLogin:
		return "redirect_login"
	case RedirectHome:
		return "redirect_home"
	}
	return "unknown"
}

const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Decision is the outcome of one guard evaluation. Location is set for redirects;
// Session is passed down on Render.
type Decision struct {
	Action   Action
	Location string
	Session  *models.Session
}

// Decide evaluates access for the requested path. It has no side effects and is
// meant to run on every request.
func Decide(sess *models.Session, required models.UserRole, requested string) Decision {
	if sess == nil {
		return Decision{Action: RedirectLogin, Location: LoginLocation(requested)}
	}
	if sess.Role != required {
		return Decision{Action: RedirectHome, Location: HomePath}
	}
	return Decision{Action: Render, Session: sess}
}

// LoginLocation builds the login URL that returns to requested after success.
func LoginLocation(requested string) string {
	next := SafeNext(requested)
	if next == "" || next == HomePath {
		return LoginPath
	}
	return LoginPath + "?next=" + url.QueryEscape(next)
}

// SafeNext returns raw if it is a same-origin absolute path, "" otherwise.
func SafeNext(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return ""
	}
	if strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") || strings.ContainsAny(raw, "\r\n") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	if u.Path == LoginPath || strings.HasPrefix(u.Path, LoginPath+"/") {
		return ""
	}
	return raw
}
