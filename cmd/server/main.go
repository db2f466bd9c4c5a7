package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"taskboard/internal/config"
	"taskboard/internal/handlers"
	"taskboard/internal/jobs"
	"taskboard/internal/logging"
	"taskboard/internal/middleware"
	"taskboard/internal/realtime"
	"taskboard/internal/repository"
	"taskboard/internal/services"
	"taskboard/pkg/auth"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load .env file (ignore error if file doesn't exist)
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	logging.Init(cfg.Environment, cfg.LogLevel)
	if envErr != nil {
		slog.Debug("no .env file loaded", "error", envErr)
	}
	if cfg.UsesDevSecret() {
		slog.Warn("JWT_SECRET not set, using the development secret")
	}
	slog.Info("starting taskboard server",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage", cfg.StorageBackend)

	// Storage
	ctx := context.Background()
	repo, err := repository.New(ctx, cfg.StorageBackend, cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to create repository: %v", err)
	}
	if err := repo.OnStart(ctx); err != nil {
		log.Fatalf("❌ Failed to start repository: %v", err)
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		log.Fatalf("❌ Failed to create token service: %v", err)
	}

	// Realtime hub, optionally relayed across instances through Redis
	hub := realtime.NewHub(logging.NewComponentLogger(cfg.Environment, cfg.LogLevel, "realtime"))

	var locker services.Locker = services.NewLocalLocker(cfg.LockTimeout)
	var redisService *services.RedisService
	var relay *realtime.Relay

	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			slog.Warn("failed to connect to Redis, running single-instance", "error", err)
		} else {
			locker = services.NewRedisLocker(redisService, 30*time.Second, cfg.LockTimeout)

			instanceID := uuid.New().String()
			relay = realtime.NewRelay(redisService, hub, instanceID,
				logging.NewComponentLogger(cfg.Environment, cfg.LogLevel, "relay"))
			if err := relay.Start(); err != nil {
				slog.Warn("failed to start realtime relay", "error", err)
				relay = nil
			} else {
				slog.Info("realtime relay started", "instance_id", instanceID)
			}
		}
	}

	// Services
	coordinator := services.NewCoordinator(repo)
	notificationService := services.NewNotificationService(repo, hub)
	authService := services.NewAuthService(repo, tokens)
	projectService := services.NewProjectService(repo, coordinator, locker, hub, notificationService)
	taskService := services.NewTaskService(repo, coordinator, locker, hub, notificationService)
	commentService := services.NewCommentService(repo, coordinator, locker, hub, notificationService)

	// Background jobs
	jobScheduler, err := jobs.NewJobScheduler()
	if err != nil {
		log.Fatalf("❌ Failed to create job scheduler: %v", err)
	}
	if err := jobScheduler.Register("notification-cleanup", cfg.NotificationCleanupCron,
		jobs.NewNotificationCleanupJob(notificationService, cfg.NotificationRetention)); err != nil {
		log.Fatalf("❌ Failed to register notification cleanup: %v", err)
	}
	jobScheduler.Start()

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Taskboard",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))

	prometheus := fiberprometheus.New("taskboard")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	allowedOrigins := strings.Join(cfg.AllowedOrigins, ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))
	slog.Info("CORS configured", "origins", allowedOrigins)

	rateLimits := middleware.NewRateLimitConfig(cfg)
	slog.Info("rate limits loaded",
		"api_per_min", rateLimits.GlobalAPIMax,
		"auth_per_min", rateLimits.AuthMax,
		"ws_per_min", rateLimits.WebSocketMax)

	handlers.RegisterRoutes(app, &handlers.Deps{
		Auth:                authService,
		Projects:            projectService,
		Tasks:               taskService,
		Comments:            commentService,
		Notifications:       notificationService,
		Hub:                 hub,
		Storage:             repo,
		RateLimits:          rateLimits,
		AllowedOrigins:      cfg.AllowedOrigins,
		WSMessagesPerSecond: cfg.WSMessagesPerSecond,
		WSMessageBurst:      cfg.WSMessageBurst,
		RealtimeLog:         logging.NewComponentLogger(cfg.Environment, cfg.LogLevel, "websocket"),
	})

	slog.Info("endpoints ready",
		"api", "http://localhost:"+cfg.Port+"/api",
		"websocket", "ws://localhost:"+cfg.Port+"/ws",
		"health", "http://localhost:"+cfg.Port+"/health")

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		slog.Info("shutting down server")

		if err := jobScheduler.Stop(); err != nil {
			slog.Warn("error stopping job scheduler", "error", err)
		}

		if relay != nil {
			if err := relay.Stop(); err != nil {
				slog.Warn("error stopping realtime relay", "error", err)
			}
		}

		hub.Close()

		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Warn("error shutting down server", "error", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repo.OnStop(stopCtx); err != nil {
		slog.Warn("error stopping repository", "error", err)
	}
	if redisService != nil {
		_ = redisService.Close()
	}
	slog.Info("server stopped")
}
