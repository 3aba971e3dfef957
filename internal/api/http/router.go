package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-lease-service/internal/api/http/handlers"
	"github.com/spec-kit/ticket-lease-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Users          *handlers.UsersHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
	Policy         *auth.Policy
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Snapshot)

	api := app.Group("/api")
	api.Post("/token", cfg.Auth.Token)
	api.Post("/token/refresh", cfg.Auth.Refresh)

	allow := func(ops ...auth.Operation) fiber.Handler {
		return auth.RequirePermission(cfg.Policy, ops...)
	}

	tickets := api.Group("/tickets", cfg.AuthMiddleware.Handle)
	// Literal paths first so they are not captured by :id.
	tickets.Get("/fetch-tickets", allow(auth.OpTicketLease), cfg.Tickets.FetchTickets)
	tickets.Get("/", allow(auth.OpTicketListHeld, auth.OpTicketListAll), cfg.Tickets.List)
	tickets.Post("/", allow(auth.OpTicketCreate), cfg.Tickets.Create)
	tickets.Post("/:id/sell", allow(auth.OpTicketSell), cfg.Tickets.Sell)
	tickets.Get("/:id", allow(auth.OpTicketListHeld, auth.OpTicketListAll), cfg.Tickets.Get)
	tickets.Put("/:id", allow(auth.OpTicketUpdate), cfg.Tickets.Update)
	tickets.Patch("/:id", allow(auth.OpTicketUpdate), cfg.Tickets.Update)
	tickets.Delete("/:id", allow(auth.OpTicketDelete), cfg.Tickets.Delete)

	users := api.Group("/users", cfg.AuthMiddleware.Handle, allow(auth.OpUserManage))
	users.Get("/", cfg.Users.List)
	users.Post("/", cfg.Users.Create)
	users.Get("/:id", cfg.Users.Get)
	users.Put("/:id", cfg.Users.Update)
	users.Patch("/:id", cfg.Users.Update)
	users.Delete("/:id", cfg.Users.Delete)
}
