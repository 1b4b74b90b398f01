package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/backend"
	"github.com/SAP-F-2025/course-portal/internal/guard"
	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/session"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	uuid2 "github.com/google/uuid"
)

const sessionKey = "session"

// SetupMiddleware sets up common middleware for the Gin router
func SetupMiddleware(router *gin.Engine, logger utils.Logger, reporter utils.Reporter, allowedOrigins []string, scriptURL string) {
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger, reporter))
	router.Use(CORSMiddleware(allowedOrigins))

	// Context logger middleware (adds logger with request_id to context)
	router.Use(utils.ContextLogger(logger))
	router.Use(utils.LoggerMiddleware(logger))

	router.Use(SecurityMiddleware(scriptURL))
}

// SecurityMiddleware adds security headers. The checkout script and its frames
// are the only third-party content a page may load.
func SecurityMiddleware(scriptURL string) gin.HandlerFunc {
	scriptSrc := "'self'"
	if u, err := url.Parse(scriptURL); err == nil && u.Scheme != "" && u.Host != "" {
		scriptSrc += " " + u.Scheme + "://" + u.Host
	}
	csp := strings.Join([]string{
		"default-src 'self'",
		"script-src " + scriptSrc,
		"frame-src 'self' https:",
		"connect-src 'self' ws: wss:",
		"img-src 'self' https: data:",
	}, "; ")

	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", csp)
		c.Next()
	}
}

// RequestIDMiddleware generates a unique request ID for each request
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid2.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// CORSMiddleware allows credentialed calls from the configured origins only.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		cfg.AllowOrigins = allowedOrigins
	} else {
		cfg.AllowOriginFunc = func(string) bool { return false }
	}
	return cors.New(cfg)
}

// RecoveryMiddleware turns a panic into a 500 and reports it.
func RecoveryMiddleware(logger utils.Logger, reporter utils.Reporter) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		err := utils.PanicError(recovered)
		utils.GetLogger(c, logger).Error("panic recovered", "error", err, "path", c.Request.URL.Path)
		reporter.Report(c.Request.Context(), err, map[string]interface{}{
			"path":       c.Request.URL.Path,
			"request_id": c.GetString("request_id"),
		})
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
			Error:     "internal_error",
			Message:   "Something went wrong. Please try again.",
			Timestamp: time.Now().UTC(),
			Path:      c.Request.URL.Path,
		})
	})
}

// AuthMiddleware hydrates the session from its cookie and enforces the route guard.
type AuthMiddleware struct {
	sessions     *session.Manager
	cookieName   string
	cookieSecure bool
	onDecision   func(guard.Decision)
}

func NewAuthMiddleware(sessions *session.Manager, cookieName string, cookieSecure bool, onDecision func(guard.Decision)) *AuthMiddleware {
	if onDecision == nil {
		onDecision = func(guard.Decision) {}
	}
	return &AuthMiddleware{
		sessions:     sessions,
		cookieName:   cookieName,
		cookieSecure: cookieSecure,
		onDecision:   onDecision,
	}
}

// SessionMiddleware attaches the session, if any, to the request. A cookie that
// no longer resolves is cleared and the request continues logged out.
func (am *AuthMiddleware) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(am.cookieName)
		if err != nil || id == "" {
			c.Next()
			return
		}

		sess := am.sessions.Get(c.Request.Context(), id)
		if sess == nil {
			am.clearCookie(c)
			c.Next()
			return
		}

		c.Set(sessionKey, sess)
		c.Request = c.Request.WithContext(backend.WithToken(c.Request.Context(), sess.Token))
		c.Next()
	}
}

// RequireRole runs the route guard for role on every request.
func (am *AuthMiddleware) RequireRole(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := CurrentSession(c)
		d := guard.Decide(sess, role, c.Request.URL.RequestURI())
		am.onDecision(d)
		am.apply(c, d)
	}
}

// RequireSession admits any logged-in role.
func (am *AuthMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := CurrentSession(c)
		role := models.UserRole("")
		if sess != nil {
			role = sess.Role
		}
		d := guard.Decide(sess, role, c.Request.URL.RequestURI())
		am.onDecision(d)
		am.apply(c, d)
	}
}

func (am *AuthMiddleware) apply(c *gin.Context, d guard.Decision) {
	switch d.Action {
	case guard.Render:
		if c.Request.Method == http.MethodGet && !wantsJSON(c) {
			am.sessions.RememberPath(c.Request.Context(), d.Session, c.Request.URL.RequestURI())
		}
		c.Next()
		return
	case guard.RedirectLogin:
		if wantsJSON(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:     "unauthorized",
				Message:   "Please log in to continue.",
				Location:  d.Location,
				Timestamp: time.Now().UTC(),
				Path:      c.Request.URL.Path,
			})
			return
		}
	case guard.RedirectHome:
		if wantsJSON(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error:     "forbidden",
				Message:   "This page is not available for your account.",
				Location:  d.Location,
				Timestamp: time.Now().UTC(),
				Path:      c.Request.URL.Path,
			})
			return
		}
	}
	c.Redirect(http.StatusSeeOther, d.Location)
	c.Abort()
}

func (am *AuthMiddleware) setCookie(c *gin.Context, sess *models.Session) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	if sess.ExpiresAt.IsZero() || maxAge <= 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(am.cookieName, sess.ID, maxAge, "/", "", am.cookieSecure, true)
}

func (am *AuthMiddleware) clearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(am.cookieName, "", -1, "/", "", am.cookieSecure, true)
}

// CurrentSession returns the session attached by SessionMiddleware, or nil.
func CurrentSession(c *gin.Context) *models.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*models.Session)
	return sess
}
