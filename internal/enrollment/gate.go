// Package enrollment decides whether a student may open a course's content.
package enrollment

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/utils"
)

type Reason string

const (
	ReasonEnrolled    Reason = "enrolled"
	ReasonUnlocked    Reason = "unlocked"
	ReasonMustEnroll  Reason = "must_enroll"
	ReasonUnavailable Reason = "unavailable"
	ReasonNoSession   Reason = "no_session"
	ReasonNotStudent  Reason = "not_student"
)

var ErrMissingCourse = errors.New("course id is required")

// Verdict is the outcome of one gate check. Retry is set when the check could
// not be completed and the user should be offered another try.
type Verdict struct {
	Allowed bool   `json:"allowed"`
	Retry   bool   `json:"retry,omitempty"`
	Reason  Reason `json:"reason"`
}

// Enrollments is the backend surface the gate reads.
type Enrollments interface {
	StudentEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error)
	CheckEnrollment(ctx context.Context, courseID, studentID string) (bool, error)
}

// Unlocks remembers, per session, which courses were already seen as enrolled.
type Unlocks interface {
	Unlock(ctx context.Context, sess *models.Session, courseID string) error
	IsUnlocked(ctx context.Context, sess *models.Session, courseID string) bool
}

type Gate struct {
	backend Enrollments
	unlocks Unlocks
	logger  utils.Logger
	observe func(Verdict)
}

type Option func(*Gate)

// WithObserver is called with every verdict Check returns.
func WithObserver(fn func(Verdict)) Option {
	return func(g *Gate) { g.observe = fn }
}

func NewGate(backend Enrollments, unlocks Unlocks, logger utils.Logger, opts ...Option) *Gate {
	g := &Gate{backend: backend, unlocks: unlocks, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check asks the backend whether the session's student is enrolled in courseID.
// Once a course has been seen as enrolled in a session it stays open for that
// session. Any failure without a prior unlock denies access with Retry set, and
// the cause is returned alongside the verdict.
func (g *Gate) Check(ctx context.Context, sess *models.Session, courseID string) (Verdict, error) {
	v, err := g.check(ctx, sess, courseID)
	if g.observe != nil {
		g.observe(v)
	}
	return v, err
}

func (g *Gate) check(ctx context.Context, sess *models.Session, courseID string) (Verdict, error) {
	switch {
	case courseID == "":
		return Verdict{Reason: ReasonUnavailable}, ErrMissingCourse
	case sess == nil:
		return Verdict{Reason: ReasonNoSession}, nil
	case sess.Role != models.RoleStudent:
		return Verdict{Reason: ReasonNotStudent}, nil
	}

	logger := utils.FromContext(ctx, g.logger).With("course_id", courseID, "student_id", sess.UserID)

	enrolled, err := g.enrolled(ctx, sess.UserID, courseID)
	if err != nil {
		if g.unlocks.IsUnlocked(ctx, sess, courseID) {
			logger.Warn("enrollment lookup failed, keeping session unlock", "error", err)
			return Verdict{Allowed: true, Reason: ReasonUnlocked}, nil
		}
		logger.Warn("enrollment lookup failed, denying access", "error", err)
		return Verdict{Retry: true, Reason: ReasonUnavailable}, fmt.Errorf("enrollment lookup: %w", err)
	}

	if enrolled {
		if err := g.unlocks.Unlock(ctx, sess, courseID); err != nil {
			logger.Warn("failed to record unlock", "error", err)
		}
		return Verdict{Allowed: true, Reason: ReasonEnrolled}, nil
	}

	if g.unlocks.IsUnlocked(ctx, sess, courseID) {
		logger.Info("backend reports no enrollment for an unlocked course")
		return Verdict{Allowed: true, Reason: ReasonUnlocked}, nil
	}
	return Verdict{Reason: ReasonMustEnroll}, nil
}

// Grant records a confirmed payment for the paying session.
func (g *Gate) Grant(ctx context.Context, sess *models.Session, courseID string) error {
	return g.unlocks.Unlock(ctx, sess, courseID)
}

// IsEnrolled is the preview-page badge check. Failures count as not enrolled.
func (g *Gate) IsEnrolled(ctx context.Context, sess *models.Session, courseID string) bool {
	if sess == nil || courseID == "" || sess.Role != models.RoleStudent {
		return false
	}
	if g.unlocks.IsUnlocked(ctx, sess, courseID) {
		return true
	}
	ok, err := g.backend.CheckEnrollment(ctx, courseID, sess.UserID)
	if err != nil {
		utils.FromContext(ctx, g.logger).Debug("enrollment check failed", "error", err, "course_id", courseID)
		return false
	}
	return ok
}

func (g *Gate) enrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	list, err := g.backend.StudentEnrollments(ctx, studentID)
	if err != nil {
		return false, err
	}
	for _, e := range list {
		if e.Course.ID == courseID && e.Grants() {
			return true, nil
		}
	}
	return false, nil
}
