package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/gin-gonic/gin"
)

// HealthChecker is a dependency the health endpoint probes.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Realtime is where checkout status pushes are delivered.
type Realtime interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string) error
}

type SystemHandler struct {
	BaseHandler
	checks   map[string]HealthChecker
	realtime Realtime
}

func NewSystemHandler(realtime Realtime, checks map[string]HealthChecker, logger utils.Logger) *SystemHandler {
	return &SystemHandler{
		BaseHandler: NewBaseHandler(logger),
		checks:      checks,
		realtime:    realtime,
	}
}

// Health reports each dependency. Any failing dependency makes the whole
// response a 503.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := gin.H{}
	for name, check := range h.checks {
		if err := check.HealthCheck(ctx); err != nil {
			h.Logger(c).Warn("health check failed", "dependency", name, "error", err)
			deps[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "dependencies": deps, "timestamp": time.Now().UTC()})
}

// Checkout upgrades to a websocket that receives the student's checkout events.
func (h *SystemHandler) Checkout(c *gin.Context) {
	sess := CurrentSession(c)
	if err := h.realtime.Serve(c.Writer, c.Request, sess.UserID); err != nil {
		// The upgrader has already written the error response.
		h.Logger(c).Debug("websocket upgrade failed", "error", err)
	}
}
