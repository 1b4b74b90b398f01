// Package session holds the logged-in user's identity between requests.
//
// The Manager is the single writer: login, registration and logout call Set and
// Clear, every other caller only reads. Hydration never fails a request; anything
// that cannot be read back is treated as "no session".
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidUser  = errors.New("login response carried no usable user")
	ErrTokenExpired = errors.New("token already expired")
)

type Manager struct {
	store  Store
	ttl    time.Duration
	logger utils.Logger
	now    func() time.Time
}

func NewManager(store Store, ttl time.Duration, logger utils.Logger) *Manager {
	return &Manager{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Set creates and persists a session for a successful login or registration.
func (m *Manager) Set(ctx context.Context, user models.User, token string) (*models.Session, error) {
	if user.ID == "" {
		return nil, ErrInvalidUser
	}

	now := m.now()
	ttl := m.ttl
	if exp, ok := tokenExpiry(token); ok {
		remaining := exp.Sub(now)
		if remaining <= 0 {
			return nil, ErrTokenExpired
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	sess := &models.Session{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Role:        models.ParseRole(string(user.Role)),
		DisplayName: displayName(user),
		Email:       user.Email,
		Phone:       user.Phone,
		Token:       token,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	if err := m.store.Save(ctx, sess, ttl); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	utils.FromContext(ctx, m.logger).Info("session created", "user_id", sess.UserID, "role", sess.Role)
	return sess, nil
}

// Get hydrates a session by id. It returns nil for a missing, expired or
// unreadable session.
func (m *Manager) Get(ctx context.Context, id string) *models.Session {
	if id == "" {
		return nil
	}

	sess, err := m.store.Load(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			utils.FromContext(ctx, m.logger).Warn("session hydration failed", "error", err)
		}
		return nil
	}

	if !sess.Valid(m.now()) || sess.ID != id {
		utils.FromContext(ctx, m.logger).Debug("discarding invalid session", "user_id", sess.UserID)
		return nil
	}
	return sess
}

// Clear removes the session and its bookkeeping.
func (m *Manager) Clear(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	utils.FromContext(ctx, m.logger).Info("session cleared")
	return nil
}

// RememberPath records the last guarded page the session visited.
func (m *Manager) RememberPath(ctx context.Context, sess *models.Session, path string) {
	if sess == nil {
		return
	}
	if err := m.store.SavePath(ctx, sess.ID, path, m.remaining(sess)); err != nil {
		utils.FromContext(ctx, m.logger).Debug("remember path failed", "error", err)
	}
}

// LastPath returns the last guarded page or "".
func (m *Manager) LastPath(ctx context.Context, sess *models.Session) string {
	if sess == nil {
		return ""
	}
	path, err := m.store.LoadPath(ctx, sess.ID)
	if err != nil {
		utils.FromContext(ctx, m.logger).Debug("load path failed", "error", err)
		return ""
	}
	return path
}

// Unlock records that the session has seen courseID as enrolled.
func (m *Manager) Unlock(ctx context.Context, sess *models.Session, courseID string) error {
	if sess == nil || courseID == "" {
		return nil
	}
	return m.store.AddUnlocked(ctx, sess.ID, courseID, m.remaining(sess))
}

// IsUnlocked reports whether Unlock was called for courseID in this session.
func (m *Manager) IsUnlocked(ctx context.Context, sess *models.Session, courseID string) bool {
	if sess == nil || courseID == "" {
		return false
	}
	ok, err := m.store.IsUnlocked(ctx, sess.ID, courseID)
	if err != nil {
		utils.FromContext(ctx, m.logger).Warn("unlock lookup failed", "error", err, "course_id", courseID)
		return false
	}
	return ok
}

// Preferences returns the saved UI preferences for (courseID, studentID).
func (m *Manager) Preferences(ctx context.Context, courseID, studentID string) models.Preferences {
	prefs, err := m.store.LoadPreferences(ctx, preferenceKey(courseID, studentID))
	if err != nil {
		utils.FromContext(ctx, m.logger).Debug("load preferences failed", "error", err)
		return models.Preferences{}
	}
	return prefs
}

func (m *Manager) SavePreferences(ctx context.Context, courseID, studentID string, prefs models.Preferences) error {
	return m.store.SavePreferences(ctx, preferenceKey(courseID, studentID), prefs)
}

func (m *Manager) remaining(sess *models.Session) time.Duration {
	if sess.ExpiresAt.IsZero() {
		return m.ttl
	}
	d := sess.ExpiresAt.Sub(m.now())
	if d <= 0 {
		return time.Second
	}
	return d
}

func preferenceKey(courseID, studentID string) string {
	return courseID + ":" + studentID
}

func displayName(u models.User) string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return name
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

// tokenExpiry reads exp from a JWT without verifying it. Tokens are opaque to the
// portal; only the backend validates them.
func tokenExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
