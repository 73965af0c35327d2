package handler

import (
	"escrow-marketplace/internal/core/ports"
	"escrow-marketplace/pkg/response"

	"github.com/gin-gonic/gin"
)

// NotificationHandler serves the caller's notification inbox.
type NotificationHandler struct {
	notificationSvc ports.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notificationSvc ports.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationSvc: notificationSvc}
}

// List handles GET /api/v1/notifications?limit=50
func (h *NotificationHandler) List(c *gin.Context) {
	a, ok := actor(c)
	if !ok {
		return
	}
	limit := queryInt(c, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	items, err := h.notificationSvc.List(c.Request.Context(), a.UserID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}
