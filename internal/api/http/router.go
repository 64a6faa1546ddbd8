package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/condo-scheduler/internal/api/http/handlers"
	"github.com/spec-kit/condo-scheduler/internal/auth"
	"github.com/spec-kit/condo-scheduler/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Cases          *handlers.CasesHandler
	Replies        *handlers.RepliesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	cases := app.Group("/cases", cfg.AuthMiddleware.Handle)
	cases.Post("", auth.RequireRole(domain.ClientRoleChatBridge, domain.ClientRoleOperator), cfg.Cases.CreateCase)
	cases.Get("/:id", cfg.Cases.GetCase)
	cases.Post("/:id/visit-completed", auth.RequireRole(domain.ClientRoleOperator), cfg.Cases.CompleteVisit)
	cases.Post("/:id/close", auth.RequireRole(domain.ClientRoleOperator), cfg.Cases.CloseCase)

	webhooks := app.Group("/webhooks", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.ClientRoleChatBridge))
	webhooks.Post("/replies", cfg.Replies.HandleReply)
}
