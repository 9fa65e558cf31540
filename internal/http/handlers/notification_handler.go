package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/freelance-escrow/internal/http/handlers/common"
	"github.com/ignatzorin/freelance-escrow/internal/http/response"
	"github.com/ignatzorin/freelance-escrow/internal/service"
)

type NotificationHandler struct {
	notifications *service.NotificationService
}

func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// OptOut PUT /notifications/opt-outs/:category
func (h *NotificationHandler) OptOut(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	if err := h.notifications.OptOut(c.Request.Context(), userID, c.Param("category")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// OptIn DELETE /notifications/opt-outs/:category
func (h *NotificationHandler) OptIn(c *gin.Context) {
	userID, ok := common.RequireUser(c)
	if !ok {
		return
	}
	if err := h.notifications.OptIn(c.Request.Context(), userID, c.Param("category")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
