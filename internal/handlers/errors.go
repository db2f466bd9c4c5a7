package handlers

import (
	"errors"
	"log/slog"

	"taskboard/internal/logging"
	"taskboard/internal/middleware"
	"taskboard/internal/models"

	"github.com/gofiber/fiber/v2"
)

// writeError converts a service error into the {message} response shape.
// Anything that is not one of the model error kinds is a server fault: it is
// logged and answered with a generic message.
func writeError(c *fiber.Ctx, err error) error {
	status := statusOf(err)
	if status == fiber.StatusInternalServerError {
		var userID string
		if user := middleware.CurrentUser(c); user != nil {
			userID = user.ID.Hex()
		}
		logging.WithUser(userID).Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", c.Locals("requestid"),
			"error", err)
		return c.Status(status).JSON(fiber.Map{"message": "Server error"})
	}
	return c.Status(status).JSON(fiber.Map{"message": models.Message(err, err.Error())})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, models.ErrAccessDenied):
		return fiber.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrInvalidReference),
		errors.Is(err, models.ErrDuplicate),
		errors.Is(err, models.ErrValidation):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders errors returned from routes and middleware (unknown
// routes, body parser failures, recovered panics) in the same shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code >= fiber.StatusInternalServerError {
			slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
			return c.Status(fe.Code).JSON(fiber.Map{"message": "Server error"})
		}
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}
	return writeError(c, err)
}

// parseBody decodes the JSON body into out. An empty body leaves out untouched.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return models.Errorf(models.ErrValidation, "Invalid request body")
	}
	return nil
}
