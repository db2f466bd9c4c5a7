package middleware

import (
	"context"
	"errors"
	"log/slog"

	"taskboard/internal/models"
	"taskboard/pkg/auth"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by Protect.
const (
	LocalUser   = "user"
	LocalUserID = "user_id"
)

// Authenticator resolves a bearer token to a user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Protect requires a valid bearer token.
// Supports both Authorization header and query parameter (for WebSocket connections)
func Protect(authenticator Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var token string

		// 1. Try Authorization header first
		if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			if extracted, err := auth.ExtractToken(authHeader); err == nil {
				token = extracted
			}
		}

		// 2. Try query parameter (for WebSocket connections)
		if token == "" {
			token = c.Query("token")
		}

		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not authorized, no token",
			})
		}

		user, err := authenticator.Authenticate(c.UserContext(), token)
		if err != nil {
			if !errors.Is(err, models.ErrUnauthenticated) {
				slog.Error("failed to authenticate request", "path", c.Path(), "error", err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"message": "Server error",
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": models.Message(err, "Not authorized, token failed"),
			})
		}

		c.Locals(LocalUser, user)
		c.Locals(LocalUserID, user.ID.Hex())
		return c.Next()
	}
}

// CurrentUser returns the user stored by Protect, or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(LocalUser).(*models.User)
	return user
}
