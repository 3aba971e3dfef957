package app

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-lease-service/internal/api/http"
	"github.com/spec-kit/ticket-lease-service/internal/api/http/handlers"
	"github.com/spec-kit/ticket-lease-service/internal/auth"
	"github.com/spec-kit/ticket-lease-service/internal/config"
	"github.com/spec-kit/ticket-lease-service/internal/events"
	"github.com/spec-kit/ticket-lease-service/internal/id"
	"github.com/spec-kit/ticket-lease-service/internal/observability"
	"github.com/spec-kit/ticket-lease-service/internal/persistence"
	"github.com/spec-kit/ticket-lease-service/internal/repository"
	"github.com/spec-kit/ticket-lease-service/internal/service"
	"github.com/spec-kit/ticket-lease-service/internal/worker"
)

// App holds the wired service graph shared by the server and the admin CLI.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Policy   *auth.Policy
	Users    repository.UserStore
	Lease    *service.LeaseService
	Tickets  *service.TicketService
	Accounts *service.AccountService

	migrate   func(ctx context.Context) error
	readiness map[string]handlers.Pinger
	closers   []func()
}

// New opens the configured store and builds every service on top of it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	policy, err := auth.LoadPolicy(cfg.Policy.File)
	if err != nil {
		return nil, err
	}
	ids, err := id.New(cfg.App.NodeID)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Metrics:   observability.NewMetrics(),
		Policy:    policy,
		readiness: map[string]handlers.Pinger{},
	}

	var tickets repository.TicketStore
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		db, err := persistence.NewSQLite(ctx, cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.readiness["sqlite"] = db
		a.migrate = func(ctx context.Context) error { return persistence.RunSQLiteMigrations(ctx, db.DB, logger) }
		tickets = repository.NewSQLiteTicketRepository(db.DB)
		a.Users = repository.NewSQLiteUserRepository(db.DB)
	default:
		pg, err := persistence.NewPostgres(ctx, cfg.Store, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		a.readiness["postgres"] = pg
		a.migrate = func(ctx context.Context) error { return persistence.RunMigrations(ctx, pg.PoolHandle(), logger) }
		tickets = repository.NewTicketRepository(pg.PoolHandle())
		a.Users = repository.NewUserRepository(pg.PoolHandle())
	}

	if cfg.Store.RunMigrations {
		if err := a.migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	dispatcher := events.NewInMemoryDispatcher()
	var stream service.StreamAppender
	if redis := persistence.NewRedis(ctx, cfg.Redis, logger); redis != nil {
		a.closers = append(a.closers, redis.Close)
		a.readiness["redis"] = redis
		stream = redis
	}
	worker.StartEventRelay(service.NewEventRelay(dispatcher, stream, logger, cfg.Events))

	a.Lease = service.NewLeaseService(cfg.Lease, service.LeaseDependencies{
		Tickets:    tickets,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    a.Metrics,
	})
	a.Tickets = service.NewTicketService(service.TicketDependencies{
		Tickets:    tickets,
		IDs:        ids,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	a.Accounts = service.NewAccountService(cfg.Auth, service.AccountDependencies{
		Users:  a.Users,
		IDs:    ids,
		Logger: logger,
	})
	return a, nil
}

// Migrate applies pending schema migrations.
func (a *App) Migrate(ctx context.Context) error {
	return a.migrate(ctx)
}

// HTTP builds the fiber application.
func (a *App) HTTP() *fiber.App {
	return httptransport.NewServer(httptransport.ServerDeps{
		Name:           a.Config.App.Name,
		Version:        a.Config.App.Version,
		RequestTimeout: a.Config.App.RequestTimeout(),
		Logger:         a.Logger,
		Metrics:        a.Metrics,
		Policy:         a.Policy,
		Users:          a.Users,
		Lease:          a.Lease,
		Tickets:        a.Tickets,
		Accounts:       a.Accounts,
		Readiness:      a.readiness,
	})
}

// Close releases store and cache connections in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
