package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ConnectionCounter reports the number of live websocket connections.
type ConnectionCounter interface {
	Count() int
}

// Pinger checks a dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	connections ConnectionCounter
	storage     Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(connections ConnectionCounter, storage Pinger) *HealthHandler {
	return &HealthHandler{connections: connections, storage: storage}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	status := "healthy"
	code := fiber.StatusOK

	if h.storage != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.storage.Ping(ctx); err != nil {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status":      status,
		"connections": h.connections.Count(),
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}
