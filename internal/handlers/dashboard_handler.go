package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/reports"
	"github.com/SAP-F-2025/course-portal/internal/services"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/gin-gonic/gin"
)

// RevenueSource supplies the admin revenue report.
type RevenueSource interface {
	Revenue(ctx context.Context) (*models.RevenueReport, error)
}

type DashboardHandler struct {
	BaseHandler
	service  services.DashboardService
	courses  services.CourseService
	revenue  RevenueSource
	currency string
}

func NewDashboardHandler(service services.DashboardService, courses services.CourseService, revenue RevenueSource, currency string, logger utils.Logger) *DashboardHandler {
	return &DashboardHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
		courses:     courses,
		revenue:     revenue,
		currency:    currency,
	}
}

// ===== DASHBOARD ENDPOINTS =====

// Student shows enrolled courses and notifications. A failing section is shown
// as an error in place while the rest of the page still renders.
func (h *DashboardHandler) Student(c *gin.Context) {
	h.LogRequest(c, "Getting student dashboard")
	dash := h.service.Student(c.Request.Context(), CurrentSession(c))
	h.respondDashboard(c, "student_dashboard.html", "My learning", dash)
}

func (h *DashboardHandler) Faculty(c *gin.Context) {
	h.LogRequest(c, "Getting faculty dashboard")
	dash := h.service.Faculty(c.Request.Context(), CurrentSession(c))
	h.respondDashboard(c, "faculty_dashboard.html", "My courses", dash)
}

func (h *DashboardHandler) Admin(c *gin.Context) {
	h.LogRequest(c, "Getting admin dashboard")
	dash := h.service.Admin(c.Request.Context(), CurrentSession(c))
	h.respondDashboard(c, "admin_dashboard.html", "Administration", dash)
}

func (h *DashboardHandler) respondDashboard(c *gin.Context, page, title string, dash any) {
	if wantsJSON(c) {
		c.JSON(http.StatusOK, dash)
		return
	}
	h.render(c, http.StatusOK, page, gin.H{"Title": title, "Dashboard": dash})
}

// DeleteCourse lets an admin remove any course.
func (h *DashboardHandler) DeleteCourse(c *gin.Context) {
	courseID := c.Param("id")
	h.LogRequest(c, "Admin deleting course", "course_id", courseID)

	if err := h.courses.Delete(c.Request.Context(), CurrentSession(c), courseID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, SuccessResponse{Message: "Course deleted", Timestamp: time.Now().UTC()})
		return
	}
	redirect(c, "/admin/dashboard?notice=deleted")
}

// RevenueExport downloads the revenue report as a spreadsheet.
func (h *DashboardHandler) RevenueExport(c *gin.Context) {
	h.LogRequest(c, "Exporting revenue report")

	report, err := h.revenue.Revenue(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	data, err := reports.RevenueWorkbook(report, h.currency)
	if err != nil {
		h.LogError(c, err, "Failed to build revenue workbook")
		h.respondError(c, http.StatusInternalServerError, "export_failed", "The revenue report could not be generated.")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+reports.RevenueFilename(time.Now().UTC())+`"`)
	c.Data(http.StatusOK, reports.XLSXContentType, data)
}
