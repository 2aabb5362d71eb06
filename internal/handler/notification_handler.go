package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-admin-console/internal/models"
	"github.com/noah-isme/sma-admin-console/pkg/response"
)

type notificationService interface {
	Summary() models.NotificationSummary
	MarkRead() models.NotificationSummary
}

// NotificationHandler exposes the unread notice counter.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service notificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// Summary godoc
// @Summary Unread notice counter
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) Summary(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Summary(), nil)
}

// MarkRead godoc
// @Summary Reset the unread notice counter
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notifications/read [post]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.MarkRead(), nil)
}
