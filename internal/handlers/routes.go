package handlers

import (
	"taskboard/internal/middleware"
	"taskboard/internal/realtime"
	"taskboard/internal/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Deps carries everything the routes need.
type Deps struct {
	Auth          *services.AuthService
	Projects      *services.ProjectService
	Tasks         *services.TaskService
	Comments      *services.CommentService
	Notifications *services.NotificationService

	Hub     *realtime.Hub
	Storage Pinger

	RateLimits          *middleware.RateLimitConfig
	AllowedOrigins      []string
	WSMessagesPerSecond int
	WSMessageBurst      int
	RealtimeLog         *logrus.Entry
}

// RegisterRoutes mounts /health, the REST API under /api and the websocket at /ws.
func RegisterRoutes(app *fiber.App, d *Deps) {
	healthHandler := NewHealthHandler(d.Hub, d.Storage)
	authHandler := NewAuthHandler(d.Auth)
	projectHandler := NewProjectHandler(d.Projects)
	taskHandler := NewTaskHandler(d.Tasks)
	commentHandler := NewCommentHandler(d.Comments)
	notificationHandler := NewNotificationHandler(d.Notifications)
	wsHandler := NewWebSocketHandler(d.Hub, d.Projects, d.WSMessagesPerSecond, d.WSMessageBurst, d.RealtimeLog)

	protect := middleware.Protect(d.Auth)

	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")
	if d.RateLimits != nil {
		api.Use(middleware.GlobalAPIRateLimiter(d.RateLimits))
	}

	// Auth routes
	authRoutes := api.Group("/auth")
	if d.RateLimits != nil {
		authLimiter := middleware.AuthRateLimiter(d.RateLimits)
		authRoutes.Post("/register", authLimiter, authHandler.Register)
		authRoutes.Post("/login", authLimiter, authHandler.Login)
	} else {
		authRoutes.Post("/register", authHandler.Register)
		authRoutes.Post("/login", authHandler.Login)
	}
	authRoutes.Get("/me", protect, authHandler.Me)

	// Project routes
	projects := api.Group("/projects", protect)
	projects.Get("/", projectHandler.List)
	projects.Post("/", projectHandler.Create)
	projects.Get("/:id", projectHandler.Get)
	projects.Put("/:id", projectHandler.Update)
	projects.Post("/:id/members", projectHandler.AddMember)
	projects.Post("/:id/reindex", projectHandler.Reindex)

	// Task routes
	tasks := api.Group("/tasks", protect)
	tasks.Get("/project/:projectId", taskHandler.ListByProject)
	tasks.Post("/", taskHandler.Create)
	tasks.Get("/:id", taskHandler.Get)
	tasks.Put("/:id", taskHandler.Update)
	tasks.Put("/:id/assign", taskHandler.Assign)
	tasks.Delete("/:id", taskHandler.Delete)
	tasks.Post("/:id/comments", commentHandler.Create)

	// Comment routes
	comments := api.Group("/comments", protect)
	comments.Get("/task/:taskId", commentHandler.ListByTask)
	comments.Get("/:id", commentHandler.Get)
	comments.Put("/:id", commentHandler.Update)
	comments.Delete("/:id", commentHandler.Delete)

	// Notification routes
	notifications := api.Group("/notifications", protect)
	notifications.Get("/", notificationHandler.List)
	notifications.Put("/read-all", notificationHandler.MarkAllRead)
	notifications.Put("/:id/read", notificationHandler.MarkRead)

	// WebSocket route (requires auth)
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	if d.RateLimits != nil {
		app.Use("/ws", middleware.WebSocketRateLimiter(d.RateLimits))
	}
	app.Use("/ws", protect)
	app.Get("/ws", websocket.New(wsHandler.Handle, websocket.Config{
		Origins: d.AllowedOrigins,
	}))
}
