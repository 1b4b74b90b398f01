package services

import (
	"sync"

	"github.com/SAP-F-2025/course-portal/internal/cache"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/SAP-F-2025/course-portal/internal/validator"
)

// serviceManager implements ServiceManager interface
type serviceManager struct {
	backend   Backend
	cache     *cache.CacheManager
	validator *validator.BusinessValidator
	logger    utils.Logger

	once                sync.Once
	courseService       CourseService
	dashboardService    DashboardService
	notificationService NotificationService
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(b Backend, cm *cache.CacheManager, v *validator.BusinessValidator, logger utils.Logger) ServiceManager {
	return &serviceManager{
		backend:   b,
		cache:     cm,
		validator: v,
		logger:    logger,
	}
}

func (sm *serviceManager) init() {
	sm.once.Do(func() {
		sm.courseService = NewCourseService(sm.backend, sm.cache, sm.validator, sm.logger)
		sm.dashboardService = NewDashboardService(sm.backend, sm.courseService, sm.logger)
		sm.notificationService = NewNotificationService(sm.backend, sm.logger)
		sm.logger.Info("Service manager initialized")
	})
}

func (sm *serviceManager) Course() CourseService {
	sm.init()
	return sm.courseService
}

func (sm *serviceManager) Dashboard() DashboardService {
	sm.init()
	return sm.dashboardService
}

func (sm *serviceManager) Notification() NotificationService {
	sm.init()
	return sm.notificationService
}
