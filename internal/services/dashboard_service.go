package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/backend"
	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"golang.org/x/sync/errgroup"
)

// ===== VIEW MODELS =====

// Section is one independently loaded part of a dashboard. Error is set, and
// Data left empty, when that part failed to load.
type Section[T any] struct {
	Data  T      `json:"data"`
	Error string `json:"error,omitempty"`
}

func (s Section[T]) Failed() bool { return s.Error != "" }

type EnrolledCourse struct {
	CourseID   string               `json:"course_id"`
	Title      string               `json:"title"`
	Slug       string               `json:"slug"`
	Category   string               `json:"category,omitempty"`
	Status     models.PaymentStatus `json:"status"`
	Active     bool                 `json:"active"`
	EnrolledAt time.Time            `json:"enrolled_at"`
}

type StudentDashboard struct {
	Session       *models.Session                `json:"-"`
	Enrolled      Section[[]EnrolledCourse]      `json:"enrolled"`
	Notifications Section[[]models.Notification] `json:"notifications"`
	Unread        int                            `json:"unread"`
}

type FacultyDashboard struct {
	Session       *models.Session                `json:"-"`
	Courses       Section[[]models.Course]       `json:"courses"`
	Notifications Section[[]models.Notification] `json:"notifications"`
}

type AdminDashboard struct {
	Session    *models.Session                `json:"-"`
	Users      Section[[]models.User]         `json:"users"`
	Courses    Section[[]models.Course]       `json:"courses"`
	Revenue    Section[*models.RevenueReport] `json:"revenue"`
	RoleCounts map[models.UserRole]int        `json:"role_counts"`
}

// ===== SERVICE IMPLEMENTATION =====

type dashboardService struct {
	backend Backend
	courses CourseService
	logger  utils.Logger
}

func NewDashboardService(b Backend, courses CourseService, logger utils.Logger) DashboardService {
	return &dashboardService{
		backend: b,
		courses: courses,
		logger:  logger,
	}
}

func (s *dashboardService) Student(ctx context.Context, sess *models.Session) *StudentDashboard {
	d := &StudentDashboard{Session: sess}
	var (
		g           errgroup.Group
		enrollments []models.Enrollment
		enrollErr   error
		catalogue   []models.Course
	)

	g.Go(func() error {
		enrollments, enrollErr = s.backend.StudentEnrollments(ctx, sess.UserID)
		return nil
	})
	g.Go(func() error {
		d.Notifications = s.notifications(ctx, sess.UserID)
		return nil
	})
	g.Go(func() error {
		// Only used to fill in titles; the section does not fail without it.
		if all, err := s.courses.All(ctx); err == nil {
			catalogue = all
		}
		return nil
	})
	_ = g.Wait()

	if enrollErr != nil {
		d.Enrolled.Error = s.sectionError(ctx, "enrollments", enrollErr, "Could not load your courses.")
	} else {
		d.Enrolled.Data = enrolledCourses(enrollments, catalogue)
	}
	for _, n := range d.Notifications.Data {
		if !n.Read {
			d.Unread++
		}
	}
	return d
}

func (s *dashboardService) Faculty(ctx context.Context, sess *models.Session) *FacultyDashboard {
	d := &FacultyDashboard{Session: sess}
	var g errgroup.Group

	g.Go(func() error {
		courses, err := s.courses.FacultyCourses(ctx, sess.UserID)
		if err != nil {
			d.Courses.Error = s.sectionError(ctx, "faculty_courses", err, "Could not load your courses.")
			return nil
		}
		d.Courses.Data = courses
		return nil
	})
	g.Go(func() error {
		d.Notifications = s.notifications(ctx, sess.UserID)
		return nil
	})
	_ = g.Wait()
	return d
}

func (s *dashboardService) Admin(ctx context.Context, sess *models.Session) *AdminDashboard {
	d := &AdminDashboard{Session: sess, RoleCounts: make(map[models.UserRole]int)}
	var g errgroup.Group

	g.Go(func() error {
		users, err := s.backend.ListUsers(ctx)
		if err != nil {
			d.Users.Error = s.sectionError(ctx, "users", err, "Could not load users.")
			return nil
		}
		d.Users.Data = users
		return nil
	})
	g.Go(func() error {
		courses, err := s.courses.All(ctx)
		if err != nil {
			d.Courses.Error = s.sectionError(ctx, "courses", err, "Could not load courses.")
			return nil
		}
		d.Courses.Data = courses
		return nil
	})
	g.Go(func() error {
		report, err := s.backend.Revenue(ctx)
		if err != nil {
			d.Revenue.Error = s.sectionError(ctx, "revenue", err, "Could not load revenue.")
			return nil
		}
		d.Revenue.Data = report
		return nil
	})
	_ = g.Wait()

	for _, u := range d.Users.Data {
		d.RoleCounts[models.ParseRole(string(u.Role))]++
	}
	return d
}

func (s *dashboardService) notifications(ctx context.Context, userID string) Section[[]models.Notification] {
	list, err := s.backend.Notifications(ctx, userID)
	if err != nil {
		return Section[[]models.Notification]{Error: s.sectionError(ctx, "notifications", err, "Could not load notifications.")}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return Section[[]models.Notification]{Data: list}
}

func (s *dashboardService) sectionError(ctx context.Context, section string, err error, fallback string) string {
	utils.FromContext(ctx, s.logger).Warn("dashboard section failed", "section", section, "error", err)
	var be *backend.Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}

func enrolledCourses(enrollments []models.Enrollment, catalogue []models.Course) []EnrolledCourse {
	byID := make(map[string]models.Course, len(catalogue))
	for _, c := range catalogue {
		byID[c.ID] = c
	}

	out := make([]EnrolledCourse, 0, len(enrollments))
	for _, e := range enrollments {
		ec := EnrolledCourse{
			CourseID:   e.Course.ID,
			Title:      e.Course.Title,
			Status:     e.PaymentStatus,
			Active:     e.Grants(),
			EnrolledAt: e.EnrolledAt,
		}
		if c, ok := byID[e.Course.ID]; ok {
			ec.Title = c.Title
			ec.Category = c.Category
			ec.Slug = c.Slug()
		}
		if ec.Title == "" {
			ec.Title = "Untitled course"
		}
		if ec.Slug == "" {
			ec.Slug = models.Course{Title: ec.Title}.Slug()
		}
		out = append(out, ec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EnrolledAt.After(out[j].EnrolledAt) })
	return out
}
