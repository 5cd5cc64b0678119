package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/kenha/kenhavate/internal/config"
	"github.com/kenha/kenhavate/internal/handlers"
	"github.com/kenha/kenhavate/internal/middleware"
	"github.com/kenha/kenhavate/internal/models"
	"github.com/kenha/kenhavate/internal/services"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Health       *handlers.HealthHandler
	Idea         *handlers.IdeaHandler
	Challenge    *handlers.ChallengeHandler
	Category     *handlers.CategoryHandler
	Gamification *handlers.GamificationHandler
	Appeal       *handlers.AppealHandler
	Admin        *handlers.AdminHandler
}

func perMinute(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
}

func Setup(app *fiber.App, cfg *config.Config, authService *services.AuthService, h Handlers) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(perMinute(60))

	api.Get("/health", h.Health.Check)

	// Auth: public, 10 req/min per IP
	auth := api.Group("/auth", perMinute(10))
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/verify-otp", h.Auth.VerifyOTP)
	auth.Post("/resend-otp", h.Auth.ResendOTP)
	auth.Post("/refresh", h.Auth.Refresh)
	auth.Post("/logout", h.Auth.Logout)

	// Appeals: public, banned users hold no token
	appeals := api.Group("/appeals", perMinute(10))
	appeals.Post("/", h.Appeal.Send)
	appeals.Get("/eligibility", h.Appeal.Eligibility)

	// Protected routes: JWT plus an active account, applied per route so
	// public routes never see the JWT middleware.
	jwt := middleware.JWTProtected(cfg)
	active := middleware.ActiveAccount(authService)
	authed := func(hs ...fiber.Handler) []fiber.Handler {
		return append([]fiber.Handler{jwt, active}, hs...)
	}

	api.Get("/me", authed(h.Auth.Me)...)
	api.Get("/me/points", authed(h.Gamification.MyPoints)...)
	api.Get("/me/achievements", authed(h.Gamification.MyAchievements)...)
	api.Get("/leaderboard", authed(h.Gamification.Leaderboard)...)
	api.Get("/categories", authed(h.Category.List)...)

	api.Get("/ideas", authed(h.Idea.List)...)
	api.Post("/ideas", authed(h.Idea.Create)...)
	api.Get("/ideas/:id", authed(h.Idea.Get)...)
	api.Put("/ideas/:id", authed(h.Idea.Update)...)
	api.Delete("/ideas/:id", authed(h.Idea.Delete)...)
	api.Post("/ideas/:id/submit", authed(h.Idea.Submit)...)
	api.Post("/ideas/:id/reviews", authed(h.Idea.Review)...)
	api.Post("/ideas/:id/archive", authed(h.Idea.Archive)...)
	api.Post("/ideas/:id/collaborations", authed(h.Idea.AddCollaboration)...)
	api.Get("/ideas/:id/collaborations", authed(h.Idea.ListCollaborations)...)
	api.Post("/ideas/:id/attachments", authed(h.Idea.UploadAttachment)...)
	api.Get("/ideas/:id/attachments", authed(h.Idea.ListAttachments)...)
	api.Get("/ideas/:id/attachments/:attachment_id", authed(h.Idea.DownloadAttachment)...)
	api.Get("/reviews/queue", authed(h.Idea.ReviewQueue)...)

	api.Get("/challenges", authed(h.Challenge.List)...)
	api.Get("/challenges/:id", authed(h.Challenge.Get)...)
	api.Get("/challenges/:id/ideas", authed(h.Challenge.Ideas)...)

	managers := middleware.RequireRoles(models.RoleManager, models.RoleAdministrator, models.RoleDeveloper)
	api.Post("/challenges", authed(managers, h.Challenge.Create)...)
	api.Put("/challenges/:id", authed(managers, h.Challenge.Update)...)
	api.Post("/challenges/:id/status", authed(managers, h.Challenge.SetStatus)...)

	// Admin panel (protected + admin required)
	admin := api.Group("/admin", jwt, active, middleware.AdminRequired())
	admin.Get("/users", h.Admin.ListUsers)
	admin.Put("/users/:id/status", h.Admin.SetUserStatus)
	admin.Post("/users/:id/roles", h.Admin.AssignRole)
	admin.Delete("/users/:id/roles/:role", h.Admin.RemoveRole)
	admin.Put("/users/:id/primary-role", h.Admin.SetPrimaryRole)
	admin.Get("/roles", h.Admin.ListRoles)
	admin.Post("/roles", h.Admin.CreateRole)
	admin.Delete("/roles/:name", h.Admin.DeleteRole)
	admin.Post("/categories", h.Category.Create)
	admin.Put("/categories/:id", h.Category.Update)
	admin.Post("/ideas/:id/advance", h.Idea.Advance)
	admin.Get("/appeals", h.Appeal.List)
	admin.Put("/appeals/:id", h.Appeal.Decide)
	admin.Get("/audit-logs", h.Admin.AuditLogs)
}
