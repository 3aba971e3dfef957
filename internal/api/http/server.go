package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lease-service/internal/api/http/handlers"
	"github.com/spec-kit/ticket-lease-service/internal/auth"
	"github.com/spec-kit/ticket-lease-service/internal/observability"
	"github.com/spec-kit/ticket-lease-service/internal/repository"
	"github.com/spec-kit/ticket-lease-service/internal/service"
)

// ServerDeps bundles everything the HTTP surface needs.
type ServerDeps struct {
	Name           string
	Version        string
	RequestTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *observability.Metrics
	Policy         *auth.Policy
	Users          repository.UserStore
	Lease          *service.LeaseService
	Tickets        *service.TicketService
	Accounts       *service.AccountService
	Readiness      map[string]handlers.Pinger
}

// NewServer builds the fiber application with middlewares and routes.
func NewServer(deps ServerDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               deps.Name,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, deps.Logger, deps.Metrics, deps.RequestTimeout)

	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(deps.Name, deps.Version, deps.Readiness),
		Auth:           handlers.NewAuthHandler(deps.Accounts),
		Tickets:        handlers.NewTicketsHandler(deps.Lease, deps.Tickets, deps.Accounts, deps.Policy),
		Users:          handlers.NewUsersHandler(deps.Accounts),
		Metrics:        handlers.NewMetricsHandler(deps.Metrics),
		AuthMiddleware: auth.NewAuthMiddleware(deps.Accounts.TokenManager(), deps.Users),
		Policy:         deps.Policy,
	})
	return app
}
