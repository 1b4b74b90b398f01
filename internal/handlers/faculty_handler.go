package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/backend"
	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/services"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/SAP-F-2025/course-portal/internal/validator"
	"github.com/gin-gonic/gin"
)

// maxUploadSize bounds a single content upload relayed to the backend.
const maxUploadSize = 200 << 20

// FacultyHandler serves course authoring for faculty.
type FacultyHandler struct {
	BaseHandler
	courses services.CourseService
}

func NewFacultyHandler(courses services.CourseService, logger utils.Logger) *FacultyHandler {
	return &FacultyHandler{
		BaseHandler: NewBaseHandler(logger),
		courses:     courses,
	}
}

func (h *FacultyHandler) NewCourse(c *gin.Context) {
	h.render(c, http.StatusOK, "course_form.html", gin.H{"Title": "New course", "Form": models.CourseDraft{}})
}

func (h *FacultyHandler) Create(c *gin.Context) {
	var draft models.CourseDraft
	if err := c.ShouldBind(&draft); err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid_request", "Invalid course form")
		return
	}

	course, err := h.courses.Create(c.Request.Context(), CurrentSession(c), draft)
	if err != nil {
		h.formFailed(c, err, gin.H{"Title": "New course", "Form": draft})
		return
	}

	h.LogRequest(c, "Course created", "course_id", course.ID)
	if wantsJSON(c) {
		c.JSON(http.StatusCreated, SuccessResponse{Message: "Course created", Data: course, Timestamp: time.Now().UTC()})
		return
	}
	redirect(c, editPath(course.ID)+"?notice=created")
}

// Edit shows the course form for one of the faculty member's own courses.
func (h *FacultyHandler) Edit(c *gin.Context) {
	sess := CurrentSession(c)
	course, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if course.Faculty.ID != sess.UserID {
		h.handleServiceError(c, services.NewPermissionError(sess.UserID, course.ID, "course", "edit", "not the course owner"))
		return
	}
	h.render(c, http.StatusOK, "course_form.html", gin.H{
		"Title":  "Edit " + course.Title,
		"Course": course,
		"Form":   draftOf(course),
	})
}

func (h *FacultyHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	courseID := c.Param("id")

	var update models.CourseUpdate
	if err := c.ShouldBind(&update); err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid_request", "Invalid course form")
		return
	}

	course, err := h.courses.Update(ctx, CurrentSession(c), courseID, update)
	if err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && !wantsJSON(c) {
			current, gerr := h.courses.Get(ctx, courseID)
			if gerr != nil {
				h.handleServiceError(c, gerr)
				return
			}
			h.render(c, http.StatusBadRequest, "course_form.html", gin.H{
				"Title":  "Edit " + current.Title,
				"Course": current,
				"Form":   applyUpdate(draftOf(current), update),
				"Fields": ve.ByField(),
			})
			return
		}
		h.handleServiceError(c, err)
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, SuccessResponse{Message: "Course updated", Data: course, Timestamp: time.Now().UTC()})
		return
	}
	redirect(c, editPath(courseID)+"?notice=updated")
}

func (h *FacultyHandler) Delete(c *gin.Context) {
	courseID := c.Param("id")
	if err := h.courses.Delete(c.Request.Context(), CurrentSession(c), courseID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, SuccessResponse{Message: "Course deleted", Timestamp: time.Now().UTC()})
		return
	}
	redirect(c, "/faculty/dashboard?notice=deleted")
}

// UploadContent relays a content item, and its file if one was attached, to the
// backend as multipart form data.
func (h *FacultyHandler) UploadContent(c *gin.Context) {
	courseID := c.Param("id")
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	var draft models.ContentDraft
	if err := c.ShouldBind(&draft); err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid_request", "Invalid content form")
		return
	}

	var upload *backend.Upload
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			h.LogError(c, err, "Failed to open uploaded file")
			h.respondError(c, http.StatusBadRequest, "invalid_file", "The uploaded file could not be read.")
			return
		}
		defer f.Close()
		upload = &backend.Upload{Filename: fh.Filename, Content: f}
	} else if !errors.Is(err, http.ErrMissingFile) {
		h.respondError(c, http.StatusRequestEntityTooLarge, "invalid_file", "The uploaded file is too large.")
		return
	}

	course, err := h.courses.UploadContent(c.Request.Context(), CurrentSession(c), courseID, draft, upload)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Content uploaded", "course_id", courseID, "with_file", upload != nil)
	if wantsJSON(c) {
		c.JSON(http.StatusCreated, SuccessResponse{Message: "Content uploaded", Data: course, Timestamp: time.Now().UTC()})
		return
	}
	redirect(c, editPath(courseID)+"?notice=uploaded")
}

// formFailed re-renders the form with field errors, or falls back to the
// common error mapping.
func (h *FacultyHandler) formFailed(c *gin.Context, err error, data gin.H) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && !wantsJSON(c) {
		data["Fields"] = ve.ByField()
		h.render(c, http.StatusBadRequest, "course_form.html", data)
		return
	}
	h.handleServiceError(c, err)
}

func editPath(courseID string) string {
	return "/faculty/courses/" + url.PathEscape(courseID) + "/edit"
}

func draftOf(course *models.Course) models.CourseDraft {
	return models.CourseDraft{
		Title:       course.Title,
		Description: course.Description,
		Category:    course.Category,
		Price:       course.Price,
		Thumbnail:   course.Thumbnail,
	}
}

func applyUpdate(d models.CourseDraft, u models.CourseUpdate) models.CourseDraft {
	if u.Title != nil {
		d.Title = *u.Title
	}
	if u.Description != nil {
		d.Description = *u.Description
	}
	if u.Category != nil {
		d.Category = *u.Category
	}
	if u.Price != nil {
		d.Price = *u.Price
	}
	if u.Thumbnail != nil {
		d.Thumbnail = *u.Thumbnail
	}
	return d
}
