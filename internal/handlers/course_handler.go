package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/catalog"
	"github.com/SAP-F-2025/course-portal/internal/enrollment"
	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/payment"
	"github.com/SAP-F-2025/course-portal/internal/services"
	"github.com/SAP-F-2025/course-portal/internal/session"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/SAP-F-2025/course-portal/internal/validator"
	"github.com/gin-gonic/gin"
)

var sortOrders = []catalog.SortOrder{
	catalog.SortNewest,
	catalog.SortPriceAsc,
	catalog.SortPriceDesc,
	catalog.SortTitle,
	catalog.SortRating,
}

var learnTabs = map[string]bool{"overview": true, "content": true, "notes": true}

type CourseHandler struct {
	BaseHandler
	courses   services.CourseService
	gate      *enrollment.Gate
	checkouts *payment.Checkouts
	sessions  *session.Manager
	validator *validator.BusinessValidator
}

func NewCourseHandler(
	courses services.CourseService,
	gate *enrollment.Gate,
	checkouts *payment.Checkouts,
	sessions *session.Manager,
	v *validator.BusinessValidator,
	logger utils.Logger,
) *CourseHandler {
	return &CourseHandler{
		BaseHandler: NewBaseHandler(logger),
		courses:     courses,
		gate:        gate,
		checkouts:   checkouts,
		sessions:    sessions,
		validator:   v,
	}
}

// Browse lists the catalogue with filters, sorting and paging from the query string.
func (h *CourseHandler) Browse(c *gin.Context) {
	var q catalog.Query
	_ = c.ShouldBindQuery(&q)
	q = q.Normalize()

	page, err := h.courses.Browse(c.Request.Context(), q)
	if err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			h.handleServiceError(c, err)
			return
		}
		if wantsJSON(c) {
			h.handleServiceError(c, err)
			return
		}
		// Show the catalogue unfiltered by price, with the bad bound flagged.
		q.MinPrice, q.MaxPrice = "", ""
		if page, err = h.courses.Browse(c.Request.Context(), q); err != nil {
			h.handleServiceError(c, err)
			return
		}
		page.Query.MinPrice, page.Query.MaxPrice = c.Query("min_price"), c.Query("max_price")
		h.renderCatalog(c, http.StatusBadRequest, page, ve.ByField())
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, models.PaginatedResponse{
			Content:          page.Items,
			TotalElements:    int64(page.Total),
			TotalPages:       page.Pages,
			Size:             page.Size,
			Page:             page.Page,
			First:            !page.HasPrev(),
			Last:             !page.HasNext(),
			NumberOfElements: len(page.Items),
			Empty:            len(page.Items) == 0,
		})
		return
	}
	h.renderCatalog(c, http.StatusOK, page, nil)
}

func (h *CourseHandler) renderCatalog(c *gin.Context, status int, page *catalog.Page, fields map[string]string) {
	data := gin.H{
		"Title":   "Courses",
		"Page":    page,
		"Sorts":   sortOrders,
		"PrevURL": pageURL(c, page.Page-1),
		"NextURL": pageURL(c, page.Page+1),
	}
	if fields != nil {
		data["Fields"] = fields
	}
	h.render(c, status, "catalog.html", data)
}

func pageURL(c *gin.Context, page int) string {
	values := url.Values{}
	for k, v := range c.Request.URL.Query() {
		values[k] = v
	}
	values.Set("page", strconv.Itoa(page))
	return c.Request.URL.Path + "?" + values.Encode()
}

// Canonical redirects /courses/:id to the slugged preview URL.
func (h *CourseHandler) Canonical(c *gin.Context) {
	course, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Redirect(http.StatusMovedPermanently, "/courses/"+url.PathEscape(course.ID)+"/"+course.Slug())
}

// Preview shows a course's public details. For a logged-in student it also mounts
// the checkout, or links to the content when already enrolled.
func (h *CourseHandler) Preview(c *gin.Context) {
	ctx := c.Request.Context()
	course, err := h.courses.Get(ctx, c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if c.Param("slug") != course.Slug() {
		c.Redirect(http.StatusMovedPermanently, "/courses/"+url.PathEscape(course.ID)+"/"+course.Slug())
		return
	}

	sess := CurrentSession(c)
	data := gin.H{
		"Title":     course.Title,
		"Course":    course,
		"Free":      course.IsFree(),
		"Self":      c.Request.URL.RequestURI(),
		"ScriptURL": h.checkouts.ScriptURL(),
	}
	if sess != nil && sess.Role == models.RoleStudent {
		if h.gate.IsEnrolled(ctx, sess, course.ID) {
			data["Enrolled"] = true
		} else {
			status := h.checkouts.Prepare(ctx, sess.UserID, course.ID)
			data["Checkout"] = &status
		}
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, data)
		return
	}
	h.render(c, http.StatusOK, "preview.html", data)
}

// Learn serves course content behind the enrollment gate. The gate is asked on
// every visit.
func (h *CourseHandler) Learn(c *gin.Context) {
	ctx := c.Request.Context()
	sess := CurrentSession(c)
	courseID := c.Param("id")

	verdict, err := h.gate.Check(ctx, sess, courseID)
	switch {
	case err != nil && verdict.Retry:
		h.Logger(c).Warn("enrollment check failed", "error", err, "course_id", courseID)
		if wantsJSON(c) {
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{
				Error:   "enrollment_unavailable",
				Message: "We could not confirm your enrollment. Please try again.",
				Retry:   true,
				Path:    c.Request.URL.Path,
			})
			return
		}
		h.render(c, http.StatusServiceUnavailable, "retry.html", gin.H{
			"Title": "Try again",
			"Self":  c.Request.URL.RequestURI(),
		})
		return
	case err != nil:
		h.renderError(c, http.StatusNotFound, "Not found", "We could not find that course.")
		return
	case !verdict.Allowed:
		if wantsJSON(c) {
			c.JSON(http.StatusForbidden, ErrorResponse{
				Error:    string(verdict.Reason),
				Message:  "Enroll in this course to view its content.",
				Location: "/courses/" + url.PathEscape(courseID),
				Path:     c.Request.URL.Path,
			})
			return
		}
		h.render(c, http.StatusForbidden, "must_enroll.html", gin.H{"Title": "Enroll to continue", "CourseID": courseID})
		return
	}

	course, err := h.courses.Get(ctx, courseID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	prefs := h.sessions.Preferences(ctx, courseID, sess.UserID)
	tab := c.Query("tab")
	if !learnTabs[tab] {
		tab = prefs.LastTab
	}
	if !learnTabs[tab] {
		tab = "overview"
	}
	if c.Query("tab") != "" && tab != prefs.LastTab {
		prefs.LastTab = tab
		if err := h.sessions.SavePreferences(ctx, courseID, sess.UserID, prefs); err != nil {
			h.Logger(c).Debug("save last tab failed", "error", err)
		}
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"course": course, "preferences": prefs, "tab": tab})
		return
	}
	h.render(c, http.StatusOK, "learn.html", gin.H{
		"Title":  course.Title,
		"Course": course,
		"Prefs":  prefs,
		"Tab":    tab,
	})
}

// SavePreferences stores the student's last tab and notes for a course.
func (h *CourseHandler) SavePreferences(c *gin.Context) {
	sess := CurrentSession(c)
	courseID := c.Param("id")

	var req models.PreferencesRequest
	if err := c.ShouldBind(&req); err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid_request", "Invalid preferences payload")
		return
	}
	if errs := h.validator.Validate(&req); len(errs) > 0 {
		h.handleServiceError(c, errs)
		return
	}

	ctx := c.Request.Context()
	prefs := h.sessions.Preferences(ctx, courseID, sess.UserID)
	if req.LastTab != "" {
		prefs.LastTab = req.LastTab
	}
	if req.Notes != nil {
		prefs.Notes = *req.Notes
	}
	if err := h.sessions.SavePreferences(ctx, courseID, sess.UserID, prefs); err != nil {
		h.LogError(c, err, "Failed to save preferences", "course_id", courseID)
		h.respondError(c, http.StatusServiceUnavailable, "preferences_unavailable", "Your notes could not be saved. Please try again.")
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Preferences saved", Data: prefs, Timestamp: time.Now().UTC()})
}
