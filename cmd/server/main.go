package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"

	"github.com/kenha/kenhavate/internal/cache"
	"github.com/kenha/kenhavate/internal/config"
	"github.com/kenha/kenhavate/internal/database"
	"github.com/kenha/kenhavate/internal/gamification"
	"github.com/kenha/kenhavate/internal/handlers"
	"github.com/kenha/kenhavate/internal/logging"
	"github.com/kenha/kenhavate/internal/metrics"
	"github.com/kenha/kenhavate/internal/middleware"
	"github.com/kenha/kenhavate/internal/routes"
	"github.com/kenha/kenhavate/internal/services"
	"github.com/kenha/kenhavate/internal/storage"
)

func main() {
	cfg := config.Load()

	// Structured logging (JSON to stdout)
	logging.Setup(cfg.AppEnv)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" && cfg.DBDriver != "sqlite" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
	if err := database.SeedRoles(database.DB); err != nil {
		slog.Error("role seeding failed", "error", err)
		os.Exit(1)
	}

	// DB log handler (ERROR+ async batch)
	dbLogHandler := logging.NewDBHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewFanout(
		logging.NewJSONHandler(os.Stdout, cfg.AppEnv),
		dbLogHandler,
	)))

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cleanupDone)

	metrics.MustRegister()

	// Leaderboard cache (optional)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := cache.Connect(cfg.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable, leaderboard cache disabled", "error", err)
		} else {
			redisClient = client
		}
	}
	leaderboard := cache.NewLeaderboard(redisClient, 60*time.Second)

	// Attachment storage
	store, err := openStore(cfg)
	if err != nil {
		slog.Error("attachment storage unavailable", "error", err)
		os.Exit(1)
	}

	policy, err := gamification.LoadPolicy(cfg.GamificationPolicyPath)
	if err != nil {
		slog.Error("failed to load gamification policy", "path", cfg.GamificationPolicyPath, "error", err)
		os.Exit(1)
	}

	// Services
	events := services.NewDispatcher()
	mailer := services.NewLogMailer(cfg.MailFrom)
	content := services.NewContentService()
	auditService := services.NewAuditService(database.DB)
	gamificationService := services.NewGamificationService(database.DB, policy, leaderboard)
	gamificationService.Subscribe(events)

	authService := services.NewAuthService(database.DB, cfg, mailer, events, auditService)
	ideaService := services.NewIdeaService(database.DB, auditService, events, content, store)
	challengeService := services.NewChallengeService(database.DB, auditService, content)
	categoryService := services.NewCategoryService(database.DB, auditService, content)
	appealService := services.NewAppealService(database.DB, auditService, content, mailer, cfg.AppealCooldown)
	userService := services.NewUserService(database.DB, auditService)
	roleService := services.NewRoleService(database.DB, auditService)

	// Handlers
	h := routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService),
		Health:       handlers.NewHealthHandler(database.Ping),
		Idea:         handlers.NewIdeaHandler(ideaService),
		Challenge:    handlers.NewChallengeHandler(challengeService),
		Category:     handlers.NewCategoryHandler(categoryService),
		Gamification: handlers.NewGamificationHandler(gamificationService),
		Appeal:       handlers.NewAppealHandler(appealService),
		Admin:        handlers.NewAdminHandler(userService, roleService, auditService),
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app; attachments are capped at 10MB so leave room for the form
	app := fiber.New(fiber.Config{
		BodyLimit:    11 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid}\n",
	}))
	app.Use(middleware.Metrics())
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	routes.Setup(app, cfg, authService, h)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	close(cleanupDone)
	dbLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}

	// Close database connections
	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

// openStore uses MinIO when an endpoint is configured and the local upload
// directory otherwise.
func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.MinIOEndpoint == "" {
		slog.Info("storing attachments on disk", "dir", cfg.UploadDir)
		return storage.NewDiskStore(cfg.UploadDir)
	}
	store, err := storage.NewMinIOStore(storage.MinIOConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		Bucket:    cfg.MinIOBucket,
		UseSSL:    cfg.MinIOUseSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	slog.Info("storing attachments in minio", "endpoint", cfg.MinIOEndpoint, "bucket", cfg.MinIOBucket)
	return store, nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
