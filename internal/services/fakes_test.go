package services

import (
	"context"
	"sync"
	"testing"

	"github.com/SAP-F-2025/course-portal/internal/backend"
	"github.com/SAP-F-2025/course-portal/internal/cache"
	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/SAP-F-2025/course-portal/internal/validator"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	courses       []models.Course
	coursesErr    error
	enrollments   []models.Enrollment
	enrollErr     error
	notifications []models.Notification
	notifyErr     error
	users         []models.User
	usersErr      error
	revenue       *models.RevenueReport
	revenueErr    error

	created *models.CourseDraft
	updated *models.CourseUpdate
	deleted string
	upload  *backend.Upload
}

func (f *fakeBackend) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) ListCourses(context.Context) ([]models.Course, error) {
	f.hit("ListCourses")
	return f.courses, f.coursesErr
}

func (f *fakeBackend) GetCourse(_ context.Context, id string) (*models.Course, error) {
	f.hit("GetCourse")
	for _, c := range f.courses {
		if c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, &backend.Error{Status: 404, Message: "Course not found"}
}

func (f *fakeBackend) ListFacultyCourses(_ context.Context, facultyID string) ([]models.Course, error) {
	f.hit("ListFacultyCourses")
	var out []models.Course
	for _, c := range f.courses {
		if c.Faculty.ID == facultyID {
			out = append(out, c)
		}
	}
	return out, f.coursesErr
}

func (f *fakeBackend) CreateCourse(_ context.Context, facultyID string, draft models.CourseDraft) (*models.Course, error) {
	f.hit("CreateCourse")
	f.created = &draft
	return &models.Course{ID: "new", Title: draft.Title, Price: draft.Price, Faculty: models.Ref{ID: facultyID}}, nil
}

func (f *fakeBackend) UpdateCourse(_ context.Context, id string, update models.CourseUpdate) (*models.Course, error) {
	f.hit("UpdateCourse")
	f.updated = &update
	return &models.Course{ID: id}, nil
}

func (f *fakeBackend) DeleteCourse(_ context.Context, id string) error {
	f.hit("DeleteCourse")
	f.deleted = id
	return nil
}

func (f *fakeBackend) UploadContent(_ context.Context, id string, _ models.ContentDraft, file *backend.Upload) (*models.Course, error) {
	f.hit("UploadContent")
	f.upload = file
	return &models.Course{ID: id}, nil
}

func (f *fakeBackend) StudentEnrollments(context.Context, string) ([]models.Enrollment, error) {
	f.hit("StudentEnrollments")
	return f.enrollments, f.enrollErr
}

func (f *fakeBackend) Notifications(context.Context, string) ([]models.Notification, error) {
	f.hit("Notifications")
	return f.notifications, f.notifyErr
}

func (f *fakeBackend) MarkNotificationRead(context.Context, string) error {
	f.hit("MarkNotificationRead")
	return nil
}

func (f *fakeBackend) ListUsers(context.Context) ([]models.User, error) {
	f.hit("ListUsers")
	return f.users, f.usersErr
}

func (f *fakeBackend) Revenue(context.Context) (*models.RevenueReport, error) {
	f.hit("Revenue")
	return f.revenue, f.revenueErr
}

func setupServices(t *testing.T, b *fakeBackend) ServiceManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewServiceManager(b, cache.NewCacheManager(client), validator.NewBusinessValidator(), utils.NewDiscardLogger())
}

var (
	facultySession = &models.Session{ID: "sf", UserID: "f1", Role: models.RoleFaculty}
	otherFaculty   = &models.Session{ID: "so", UserID: "f2", Role: models.RoleFaculty}
	studentSession = &models.Session{ID: "ss", UserID: "s1", Role: models.RoleStudent}
	adminSession   = &models.Session{ID: "sa", UserID: "a1", Role: models.RoleAdmin}
)
