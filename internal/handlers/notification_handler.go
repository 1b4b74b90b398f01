package handlers

import (
	"net/http"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/services"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	BaseHandler
	service services.NotificationService
}

func NewNotificationHandler(service services.NotificationService, logger utils.Logger) *NotificationHandler {
	return &NotificationHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

func (h *NotificationHandler) List(c *gin.Context) {
	list, err := h.service.List(c.Request.Context(), CurrentSession(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, SuccessResponse{Data: list, Timestamp: time.Now().UTC()})
		return
	}
	h.render(c, http.StatusOK, "notifications.html", gin.H{"Title": "Notifications", "Notifications": list})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), CurrentSession(c), c.Param("id")); err != nil {
		h.handleServiceError(c, err)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, SuccessResponse{Message: "Notification marked as read", Timestamp: time.Now().UTC()})
		return
	}
	redirect(c, "/notifications?notice=read")
}
