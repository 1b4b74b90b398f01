package services

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/course-portal/internal/backend"
	"github.com/SAP-F-2025/course-portal/internal/cache"
	"github.com/SAP-F-2025/course-portal/internal/catalog"
	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/SAP-F-2025/course-portal/internal/validator"
)

type courseService struct {
	backend   Backend
	cache     *cache.CacheManager
	validator *validator.BusinessValidator
	logger    utils.Logger
}

func NewCourseService(b Backend, cm *cache.CacheManager, v *validator.BusinessValidator, logger utils.Logger) CourseService {
	return &courseService{
		backend:   b,
		cache:     cm,
		validator: v,
		logger:    logger,
	}
}

// ===== READS =====

func (s *courseService) Browse(ctx context.Context, q catalog.Query) (*catalog.Page, error) {
	courses, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	page, err := catalog.Apply(courses, q)
	if err != nil {
		return nil, validator.ValidationErrors{{Field: "price", Message: err.Error()}}
	}
	return &page, nil
}

func (s *courseService) All(ctx context.Context) ([]models.Course, error) {
	var courses []models.Course
	err := s.cache.Catalog.CacheOrExecute(ctx, "list:all", &courses, cache.CatalogCacheConfig.TTL,
		func(ctx context.Context) (interface{}, error) {
			return s.backend.ListCourses(ctx)
		})
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

func (s *courseService) Get(ctx context.Context, courseID string) (*models.Course, error) {
	var course models.Course
	err := s.cache.Catalog.CacheOrExecute(ctx, "course:"+courseID, &course, cache.CatalogCacheConfig.TTL,
		func(ctx context.Context) (interface{}, error) {
			return s.backend.GetCourse(ctx, courseID)
		})
	if err != nil {
		return nil, fmt.Errorf("get course %s: %w", courseID, err)
	}
	return &course, nil
}

func (s *courseService) FacultyCourses(ctx context.Context, facultyID string) ([]models.Course, error) {
	var courses []models.Course
	err := s.cache.Catalog.CacheOrExecute(ctx, "faculty:"+facultyID, &courses, cache.CatalogCacheConfig.TTL,
		func(ctx context.Context) (interface{}, error) {
			return s.backend.ListFacultyCourses(ctx, facultyID)
		})
	if err != nil {
		return nil, fmt.Errorf("list faculty courses: %w", err)
	}
	return courses, nil
}

// ===== WRITES =====

func (s *courseService) Create(ctx context.Context, sess *models.Session, draft models.CourseDraft) (*models.Course, error) {
	if sess == nil {
		return nil, ErrNoSession
	}
	if sess.Role != models.RoleFaculty {
		return nil, NewPermissionError(sess.UserID, "", "course", "create", "only faculty create courses")
	}
	if errs := s.validator.ValidateCourseDraft(&draft); len(errs) > 0 {
		return nil, errs
	}

	course, err := s.backend.CreateCourse(ctx, sess.UserID, draft)
	if err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	cache.InvalidateCourseCache(ctx, s.cache, "")
	utils.FromContext(ctx, s.logger).Info("course created", "course_id", course.ID, "faculty_id", sess.UserID)
	return course, nil
}

func (s *courseService) Update(ctx context.Context, sess *models.Session, courseID string, update models.CourseUpdate) (*models.Course, error) {
	if err := s.canEdit(ctx, sess, courseID, "update"); err != nil {
		return nil, err
	}
	if errs := s.validator.ValidateCourseUpdate(&update); len(errs) > 0 {
		return nil, errs
	}

	course, err := s.backend.UpdateCourse(ctx, courseID, update)
	if err != nil {
		return nil, fmt.Errorf("update course: %w", err)
	}
	cache.InvalidateCourseCache(ctx, s.cache, courseID)
	return course, nil
}

func (s *courseService) Delete(ctx context.Context, sess *models.Session, courseID string) error {
	if err := s.canEdit(ctx, sess, courseID, "delete"); err != nil {
		return err
	}
	if err := s.backend.DeleteCourse(ctx, courseID); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	cache.InvalidateCourseCache(ctx, s.cache, courseID)
	utils.FromContext(ctx, s.logger).Info("course deleted", "course_id", courseID, "by", sess.UserID)
	return nil
}

func (s *courseService) UploadContent(ctx context.Context, sess *models.Session, courseID string, draft models.ContentDraft, file *backend.Upload) (*models.Course, error) {
	if err := s.canEdit(ctx, sess, courseID, "upload_content"); err != nil {
		return nil, err
	}
	if errs := s.validator.ValidateContentDraft(&draft, file != nil); len(errs) > 0 {
		return nil, errs
	}

	course, err := s.backend.UploadContent(ctx, courseID, draft, file)
	if err != nil {
		return nil, fmt.Errorf("upload content: %w", err)
	}
	cache.InvalidateCourseCache(ctx, s.cache, courseID)
	return course, nil
}

// canEdit lets faculty change their own courses and admins delete any course.
func (s *courseService) canEdit(ctx context.Context, sess *models.Session, courseID, action string) error {
	if sess == nil {
		return ErrNoSession
	}
	switch sess.Role {
	case models.RoleAdmin:
		if action == "delete" {
			return nil
		}
		return NewPermissionError(sess.UserID, courseID, "course", action, "admins may only delete courses")
	case models.RoleFaculty:
	default:
		return NewPermissionError(sess.UserID, courseID, "course", action, "insufficient role permissions")
	}

	course, err := s.backend.GetCourse(ctx, courseID)
	if err != nil {
		return fmt.Errorf("get course %s: %w", courseID, err)
	}
	if course.Faculty.ID != sess.UserID {
		return NewPermissionError(sess.UserID, courseID, "course", action, "not course owner")
	}
	return nil
}
