package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/backend"
	"github.com/SAP-F-2025/course-portal/internal/guard"
	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/session"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/SAP-F-2025/course-portal/internal/validator"
	"github.com/gin-gonic/gin"
)

// Authenticator is the backend's login and registration surface.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
}

type AuthHandler struct {
	BaseHandler
	auth      Authenticator
	sessions  *session.Manager
	mw        *AuthMiddleware
	validator *validator.BusinessValidator
	sso       bool
}

func NewAuthHandler(auth Authenticator, sessions *session.Manager, mw *AuthMiddleware, v *validator.BusinessValidator, ssoEnabled bool, logger utils.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(logger),
		auth:        auth,
		sessions:    sessions,
		mw:          mw,
		validator:   v,
		sso:         ssoEnabled,
	}
}

// Home sends a logged-in user back to the last page they visited, or their
// dashboard, and everyone else to the catalogue.
func (h *AuthHandler) Home(c *gin.Context) {
	sess := CurrentSession(c)
	if sess == nil {
		redirect(c, "/courses")
		return
	}
	if last := guard.SafeNext(h.sessions.LastPath(c.Request.Context(), sess)); last != "" {
		redirect(c, last)
		return
	}
	redirect(c, sess.HomePath())
}

func (h *AuthHandler) LoginPage(c *gin.Context) {
	next := guard.SafeNext(c.Query("next"))
	if sess := CurrentSession(c); sess != nil {
		redirect(c, afterLogin(sess, next))
		return
	}
	h.render(c, http.StatusOK, "login.html", gin.H{"Title": "Log in", "Next": next, "SSO": h.sso})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	_ = c.ShouldBind(&req)
	req.Next = guard.SafeNext(req.Next)

	page := gin.H{"Title": "Log in", "Next": req.Next, "Email": req.Email, "SSO": h.sso}
	if errs := h.validator.Validate(&req); len(errs) > 0 {
		page["Fields"] = errs.ByField()
		h.respondForm(c, http.StatusBadRequest, "login.html", page, errs)
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.authFailed(c, "login.html", page, err, "Invalid email or password.")
		return
	}
	h.startSession(c, resp, req.Next, "login.html", page)
}

func (h *AuthHandler) RegisterPage(c *gin.Context) {
	if sess := CurrentSession(c); sess != nil {
		redirect(c, sess.HomePath())
		return
	}
	h.render(c, http.StatusOK, "register.html", gin.H{
		"Title": "Register",
		"Next":  guard.SafeNext(c.Query("next")),
		"Form":  models.RegisterRequest{Role: models.RoleStudent},
	})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	_ = c.ShouldBind(&req)
	req.Next = guard.SafeNext(req.Next)

	form := req
	form.Password = ""
	page := gin.H{"Title": "Register", "Next": req.Next, "Form": form}
	if errs := h.validator.Validate(&req); len(errs) > 0 {
		page["Fields"] = errs.ByField()
		h.respondForm(c, http.StatusBadRequest, "register.html", page, errs)
		return
	}

	resp, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		h.authFailed(c, "register.html", page, err, "Registration failed. Please try again.")
		return
	}
	h.startSession(c, resp, req.Next, "register.html", page)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if sess := CurrentSession(c); sess != nil {
		if err := h.sessions.Clear(c.Request.Context(), sess.ID); err != nil {
			h.LogError(c, err, "Failed to clear session")
		}
	}
	h.mw.clearCookie(c)
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"location": guard.LoginPath})
		return
	}
	redirect(c, guard.LoginPath+"?notice=logged_out")
}

func (h *AuthHandler) startSession(c *gin.Context, resp *models.AuthResponse, next, page string, data gin.H) {
	if resp.User.Blocked {
		data["Error"] = "This account has been blocked."
		h.respondForm(c, http.StatusForbidden, page, data, nil)
		return
	}
	sess, err := h.sessions.Set(c.Request.Context(), resp.User, resp.Token)
	if err != nil {
		if errors.Is(err, session.ErrInvalidUser) || errors.Is(err, session.ErrTokenExpired) {
			h.authFailed(c, page, data, err, "Login failed. Please try again.")
			return
		}
		h.LogError(c, err, "Failed to create session")
		data["Error"] = "We could not sign you in right now. Please try again."
		h.respondForm(c, http.StatusServiceUnavailable, page, data, nil)
		return
	}

	h.mw.setCookie(c, sess)
	h.LogRequest(c, "Session started", "user_id", sess.UserID, "role", sess.Role)
	location := afterLogin(sess, next)
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"location": location, "role": sess.Role, "name": sess.DisplayName})
		return
	}
	redirect(c, location)
}

func (h *AuthHandler) authFailed(c *gin.Context, page string, data gin.H, err error, fallback string) {
	status := http.StatusUnauthorized
	var be *backend.Error
	if errors.As(err, &be) && be.Status >= 500 {
		h.LogError(c, err, "Authentication backend failure")
		status = http.StatusBadGateway
	}
	data["Error"] = backendMessage(err, fallback)
	h.respondForm(c, status, page, data, nil)
}

func (h *AuthHandler) respondForm(c *gin.Context, status int, page string, data gin.H, errs validator.ValidationErrors) {
	if wantsJSON(c) {
		msg, _ := data["Error"].(string)
		if msg == "" && len(errs) > 0 {
			msg = "Validation failed"
		}
		resp := ErrorResponse{Error: http.StatusText(status), Message: msg, Timestamp: time.Now().UTC(), Path: c.Request.URL.Path}
		if len(errs) > 0 {
			resp.ValidationErrors = errs.Responses()
		}
		c.JSON(status, resp)
		return
	}
	h.render(c, status, page, data)
}

// afterLogin returns the preserved page, or the role's dashboard. The guard still
// applies when the preserved page belongs to another role.
func afterLogin(sess *models.Session, next string) string {
	if next = guard.SafeNext(next); next != "" {
		return next
	}
	return sess.HomePath()
}
