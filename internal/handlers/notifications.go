package handlers

import (
	"taskboard/internal/middleware"
	"taskboard/internal/models"
	"taskboard/internal/services"

	"github.com/gofiber/fiber/v2"
)

const maxNotificationLimit = 200

// NotificationHandler handles the requester's notifications
type NotificationHandler struct {
	notificationService *services.NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// List returns notifications, newest first
// GET /api/notifications?unread=true&limit=50
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > maxNotificationLimit {
		return writeError(c, models.Errorf(models.ErrValidation, "limit must be between 1 and %d", maxNotificationLimit))
	}

	notifications, err := h.notificationService.List(c.UserContext(), middleware.CurrentUser(c).ID, c.QueryBool("unread", false), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(notifications)
}

// MarkRead marks one notification as read
// PUT /api/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	notification, err := h.notificationService.MarkRead(c.UserContext(), middleware.CurrentUser(c).ID, c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(notification)
}

// MarkAllRead marks every notification as read
// PUT /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	updated, err := h.notificationService.MarkAllRead(c.UserContext(), middleware.CurrentUser(c).ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"updated": updated})
}
