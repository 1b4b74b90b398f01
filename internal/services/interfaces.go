package services

import (
	"context"

	"github.com/SAP-F-2025/course-portal/internal/backend"
	"github.com/SAP-F-2025/course-portal/internal/catalog"
	"github.com/SAP-F-2025/course-portal/internal/models"
)

// Backend is the slice of the backend API the services read and write.
// *backend.Client implements it.
type Backend interface {
	ListCourses(ctx context.Context) ([]models.Course, error)
	GetCourse(ctx context.Context, courseID string) (*models.Course, error)
	ListFacultyCourses(ctx context.Context, facultyID string) ([]models.Course, error)
	CreateCourse(ctx context.Context, facultyID string, draft models.CourseDraft) (*models.Course, error)
	UpdateCourse(ctx context.Context, courseID string, update models.CourseUpdate) (*models.Course, error)
	DeleteCourse(ctx context.Context, courseID string) error
	UploadContent(ctx context.Context, courseID string, draft models.ContentDraft, file *backend.Upload) (*models.Course, error)

	StudentEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error)
	Notifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID string) error

	ListUsers(ctx context.Context) ([]models.User, error)
	Revenue(ctx context.Context) (*models.RevenueReport, error)
}

// ===== SERVICE INTERFACES =====

type CourseService interface {
	All(ctx context.Context) ([]models.Course, error)
	Browse(ctx context.Context, q catalog.Query) (*catalog.Page, error)
	Get(ctx context.Context, courseID string) (*models.Course, error)
	FacultyCourses(ctx context.Context, facultyID string) ([]models.Course, error)

	Create(ctx context.Context, sess *models.Session, draft models.CourseDraft) (*models.Course, error)
	Update(ctx context.Context, sess *models.Session, courseID string, update models.CourseUpdate) (*models.Course, error)
	Delete(ctx context.Context, sess *models.Session, courseID string) error
	UploadContent(ctx context.Context, sess *models.Session, courseID string, draft models.ContentDraft, file *backend.Upload) (*models.Course, error)
}

type DashboardService interface {
	Student(ctx context.Context, sess *models.Session) *StudentDashboard
	Faculty(ctx context.Context, sess *models.Session) *FacultyDashboard
	Admin(ctx context.Context, sess *models.Session) *AdminDashboard
}

type NotificationService interface {
	List(ctx context.Context, sess *models.Session) ([]models.Notification, error)
	MarkRead(ctx context.Context, sess *models.Session, notificationID string) error
}

type ServiceManager interface {
	Course() CourseService
	Dashboard() DashboardService
	Notification() NotificationService
}
