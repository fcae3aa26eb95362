package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fixmate-service/internal/api/http/handlers"
	"github.com/spec-kit/fixmate-service/internal/auth"
	"github.com/spec-kit/fixmate-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Issues         *handlers.IssuesHandler
	Admin          *handlers.AdminHandler
	Messages       *handlers.MessagesHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)
	authGroup.Get("/session", cfg.Auth.Session)

	protected := app.Group("", cfg.AuthMiddleware.Handle)

	issues := protected.Group("/issues")
	issues.Post("", auth.RequireRole(domain.RoleResident), cfg.Issues.Create)
	issues.Get("/mine", auth.RequireRole(domain.RoleResident), cfg.Issues.ListMine)
	issues.Get("/queue", auth.RequireRole(domain.RoleTechnician), cfg.Issues.Queue)
	issues.Post("/:id/start", auth.RequireRole(domain.RoleTechnician), cfg.Issues.Start)
	issues.Post("/:id/resolve", auth.RequireRole(domain.RoleTechnician), cfg.Issues.Resolve)

	admin := protected.Group("/admin", auth.RequireRole(domain.RoleAdmin))
	admin.Get("/issues", cfg.Admin.Search)
	admin.Post("/issues/:id/assign", cfg.Admin.Assign)
	admin.Get("/technicians", cfg.Admin.Technicians)
	admin.Get("/dashboard/stats", cfg.Admin.Stats)
	admin.Post("/dashboard/summary", cfg.Admin.Summary)

	messages := protected.Group("/messages", auth.RequireRole())
	messages.Get("", cfg.Messages.List)
	messages.Post("", cfg.Messages.Send)
}
