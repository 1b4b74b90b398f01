package handlers

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/backend"
	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/services"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/SAP-F-2025/course-portal/internal/validator"
	"github.com/gin-gonic/gin"
)

type (
	ErrorResponse   = models.ErrorResponse
	SuccessResponse = models.SuccessResponse
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// StaticFiles serves the page scripts under /static.
func StaticFiles() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// LoadTemplates parses the embedded page templates.
func LoadTemplates(currency string) (*template.Template, error) {
	funcs := template.FuncMap{
		"price": func(n json.Number) string {
			minor, err := models.ToMinorUnits(n)
			if err != nil {
				return n.String()
			}
			if minor == 0 {
				return "FREE"
			}
			return strings.TrimSpace(currency + " " + models.FormatMinorUnits(minor))
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2 Jan 2006")
		},
	}
	return template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}

// BaseHandler carries what every handler family shares.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h BaseHandler) Logger(c *gin.Context) utils.Logger {
	return utils.GetLogger(c, h.logger)
}

func (h BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	h.Logger(c).Debug(msg, append([]any{"method", c.Request.Method, "path", c.Request.URL.Path}, args...)...)
}

func (h BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	h.Logger(c).Error(msg, append([]any{"error", err, "path", c.Request.URL.Path}, args...)...)
	_ = c.Error(err)
}

// render fills the layout keys every page template expects.
func (h BaseHandler) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if _, ok := data["Session"]; !ok {
		if sess := CurrentSession(c); sess != nil {
			data["Session"] = sess
		}
	}
	if _, ok := data["Fields"]; !ok {
		data["Fields"] = map[string]string{}
	}
	if _, ok := data["Notice"]; !ok {
		data["Notice"] = noticeText(c.Query("notice"))
	}
	c.HTML(status, name, data)
}

func (h BaseHandler) renderError(c *gin.Context, status int, heading, message string) {
	if wantsJSON(c) {
		h.respondError(c, status, http.StatusText(status), message)
		return
	}
	h.render(c, status, "error.html", gin.H{"Title": heading, "Heading": heading, "Message": message})
}

func (h BaseHandler) respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
	})
}

// handleServiceError maps a service or backend failure onto the response. Raw
// error text never reaches the user.
func (h BaseHandler) handleServiceError(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		if wantsJSON(c) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:            "validation_failed",
				Message:          "Validation failed",
				Timestamp:        time.Now().UTC(),
				Path:             c.Request.URL.Path,
				ValidationErrors: ve.Responses(),
			})
			return
		}
		h.renderError(c, http.StatusBadRequest, "Invalid input", ve.Error())
		return
	}

	var pe *services.PermissionError
	if errors.As(err, &pe) {
		h.Logger(c).Warn("permission denied", "resource", pe.Resource, "action", pe.Action, "reason", pe.Reason)
		h.renderError(c, http.StatusForbidden, "Access denied", "You are not allowed to do that.")
		return
	}

	var be *backend.Error
	switch {
	case errors.Is(err, services.ErrNoSession), errors.Is(err, backend.ErrUnauthorized):
		h.renderError(c, http.StatusUnauthorized, "Please log in", "Your session has ended. Please log in again.")
	case errors.Is(err, backend.ErrForbidden):
		h.renderError(c, http.StatusForbidden, "Access denied", backendMessage(err, "You are not allowed to do that."))
	case errors.Is(err, backend.ErrNotFound):
		h.renderError(c, http.StatusNotFound, "Not found", backendMessage(err, "We could not find what you were looking for."))
	case errors.As(err, &be) && be.Status >= 400 && be.Status < 500:
		h.renderError(c, http.StatusBadRequest, "Request rejected", backendMessage(err, "The request was rejected."))
	default:
		h.LogError(c, err, "Unexpected service error")
		h.renderError(c, http.StatusBadGateway, "Something went wrong", backendMessage(err, "The course service is unavailable. Please try again."))
	}
}

func backendMessage(err error, fallback string) string {
	var be *backend.Error
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}

// wantsJSON reports whether the caller is a script rather than a page load.
func wantsJSON(c *gin.Context) bool {
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	accept := c.GetHeader("Accept")
	if strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html") {
		return true
	}
	return strings.HasPrefix(c.ContentType(), "application/json")
}

// redirect uses 303 so a POST is followed by a GET.
func redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusSeeOther, location)
}

var notices = map[string]string{
	"logged_out": "You have been logged out.",
	"created":    "Course created.",
	"updated":    "Course updated.",
	"deleted":    "Course deleted.",
	"uploaded":   "Content uploaded.",
	"read":       "Notification marked as read.",
}

func noticeText(key string) string {
	return notices[key]
}
