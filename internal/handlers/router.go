package handlers

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SAP-F-2025/course-portal/internal/enrollment"
	"github.com/SAP-F-2025/course-portal/internal/guard"
	"github.com/SAP-F-2025/course-portal/internal/metrics"
	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/payment"
	"github.com/SAP-F-2025/course-portal/internal/services"
	"github.com/SAP-F-2025/course-portal/internal/session"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/SAP-F-2025/course-portal/internal/validator"
)

// Deps is everything the HTTP layer is built from.
type Deps struct {
	Services  services.ServiceManager
	Auth      Authenticator
	Revenue   RevenueSource
	Sessions  *session.Manager
	Gate      *enrollment.Gate
	Checkouts *payment.Checkouts
	Validator *validator.BusinessValidator
	Realtime  Realtime
	Health    map[string]HealthChecker
	Logger    utils.Logger

	// Casdoor is nil when single sign-on is not configured.
	Casdoor            CasdoorProvider
	CasdoorRedirectURL string

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	Templates    *template.Template
	CookieName   string
	CookieSecure bool
	Currency     string
}

type HandlerManager struct {
	authHandler         *AuthHandler
	ssoHandler          *SSOHandler
	courseHandler       *CourseHandler
	checkoutHandler     *CheckoutHandler
	dashboardHandler    *DashboardHandler
	facultyHandler      *FacultyHandler
	notificationHandler *NotificationHandler
	systemHandler       *SystemHandler
	authMiddleware      *AuthMiddleware
	metrics             *metrics.Metrics
	gatherer            prometheus.Gatherer
	templates           *template.Template
}

func NewHandlerManager(d Deps) *HandlerManager {
	var onDecision func(guard.Decision)
	if d.Metrics != nil {
		onDecision = d.Metrics.ObserveGuard
	}
	authMiddleware := NewAuthMiddleware(d.Sessions, d.CookieName, d.CookieSecure, onDecision)

	hm := &HandlerManager{
		authHandler:         NewAuthHandler(d.Auth, d.Sessions, authMiddleware, d.Validator, d.Casdoor != nil, d.Logger),
		courseHandler:       NewCourseHandler(d.Services.Course(), d.Gate, d.Checkouts, d.Sessions, d.Validator, d.Logger),
		checkoutHandler:     NewCheckoutHandler(d.Checkouts, d.Services.Course(), d.Gate, d.Validator, d.Logger),
		dashboardHandler:    NewDashboardHandler(d.Services.Dashboard(), d.Services.Course(), d.Revenue, d.Currency, d.Logger),
		facultyHandler:      NewFacultyHandler(d.Services.Course(), d.Logger),
		notificationHandler: NewNotificationHandler(d.Services.Notification(), d.Logger),
		systemHandler:       NewSystemHandler(d.Realtime, d.Health, d.Logger),
		authMiddleware:      authMiddleware,
		metrics:             d.Metrics,
		gatherer:            d.Gatherer,
		templates:           d.Templates,
	}
	if d.Casdoor != nil {
		hm.ssoHandler = NewSSOHandler(d.Casdoor, d.CasdoorRedirectURL, d.Sessions, authMiddleware, d.Logger)
	}
	return hm
}

// SetupRoutes sets up all page and API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(hm.templates)
	if hm.metrics != nil {
		router.Use(hm.metrics.Middleware())
	}

	router.GET("/health", hm.systemHandler.Health)
	if hm.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(hm.gatherer, promhttp.HandlerOpts{})))
	}
	router.StaticFS("/static", StaticFiles())

	app := router.Group("/")
	app.Use(hm.authMiddleware.SessionMiddleware())
	{
		app.GET("/", hm.authHandler.Home)
		app.GET("/login", hm.authHandler.LoginPage)
		app.POST("/login", hm.authHandler.Login)
		app.GET("/register", hm.authHandler.RegisterPage)
		app.POST("/register", hm.authHandler.Register)
		app.POST("/logout", hm.authHandler.Logout)

		if hm.ssoHandler != nil {
			app.GET("/auth/sso", hm.ssoHandler.Start)
			app.GET("/auth/sso/callback", hm.ssoHandler.Callback)
		}

		student := hm.authMiddleware.RequireRole(models.RoleStudent)
		faculty := hm.authMiddleware.RequireRole(models.RoleFaculty)
		admin := hm.authMiddleware.RequireRole(models.RoleAdmin)

		// Catalogue - public
		courses := app.Group("/courses")
		{
			courses.GET("", hm.courseHandler.Browse)
			courses.GET("/:id", hm.courseHandler.Canonical)
			courses.GET("/:id/:slug", hm.courseHandler.Preview)

			// Content and checkout - students only
			courses.GET("/:id/learn", student, hm.courseHandler.Learn)
			courses.PUT("/:id/preferences", student, hm.courseHandler.SavePreferences)
			courses.GET("/:id/checkout", student, hm.checkoutHandler.Status)
			courses.POST("/:id/checkout", student, hm.checkoutHandler.Begin)
			courses.POST("/:id/checkout/complete", student, hm.checkoutHandler.Complete)
			courses.POST("/:id/checkout/dismiss", student, hm.checkoutHandler.Dismiss)
		}

		app.GET("/student/dashboard", student, hm.dashboardHandler.Student)
		app.GET("/ws/checkout", student, hm.systemHandler.Checkout)

		facultyRoutes := app.Group("/faculty", faculty)
		{
			facultyRoutes.GET("/dashboard", hm.dashboardHandler.Faculty)
			facultyRoutes.GET("/courses/new", hm.facultyHandler.NewCourse)
			facultyRoutes.POST("/courses", hm.facultyHandler.Create)
			facultyRoutes.GET("/courses/:id/edit", hm.facultyHandler.Edit)
			facultyRoutes.POST("/courses/:id", hm.facultyHandler.Update)
			facultyRoutes.POST("/courses/:id/delete", hm.facultyHandler.Delete)
			facultyRoutes.POST("/courses/:id/content", hm.facultyHandler.UploadContent)
		}

		adminRoutes := app.Group("/admin", admin)
		{
			adminRoutes.GET("/dashboard", hm.dashboardHandler.Admin)
			adminRoutes.POST("/courses/:id/delete", hm.dashboardHandler.DeleteCourse)
			adminRoutes.GET("/revenue.xlsx", hm.dashboardHandler.RevenueExport)
		}

		// Notifications - any logged-in role
		notifications := app.Group("/notifications", hm.authMiddleware.RequireSession())
		{
			notifications.GET("", hm.notificationHandler.List)
			notifications.POST("/:id/read", hm.notificationHandler.MarkRead)
		}
	}

	router.NoRoute(hm.authMiddleware.SessionMiddleware(), func(c *gin.Context) {
		hm.authHandler.renderError(c, http.StatusNotFound, "Not found", "We could not find that page.")
	})
}
