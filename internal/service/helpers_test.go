package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lease-service/internal/config"
	"github.com/spec-kit/ticket-lease-service/internal/domain"
	"github.com/spec-kit/ticket-lease-service/internal/events"
	"github.com/spec-kit/ticket-lease-service/internal/id"
	"github.com/spec-kit/ticket-lease-service/internal/observability"
	"github.com/spec-kit/ticket-lease-service/internal/persistence"
	"github.com/spec-kit/ticket-lease-service/internal/repository"
)

var testEpoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	lease      *LeaseService
	tickets    *TicketService
	accounts   *AccountService
	store      repository.TicketStore
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	admin      *domain.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	db, err := persistence.NewSQLite(ctx, filepath.Join(t.TempDir(), "tickets.db"), logger)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, persistence.RunSQLiteMigrations(ctx, db.DB, logger))

	ids, err := id.New(1)
	require.NoError(t, err)

	store := repository.NewSQLiteTicketRepository(db.DB)
	users := repository.NewSQLiteUserRepository(db.DB)
	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	env := &testEnv{
		lease: NewLeaseService(config.LeaseConfig{Quota: 15, MaxAttempts: 3, InitialBackoffMS: 1, MaxBackoffMS: 5}, LeaseDependencies{
			Tickets:    store,
			Dispatcher: dispatcher,
			Logger:     logger,
			Metrics:    metrics,
		}),
		tickets:    NewTicketService(TicketDependencies{Tickets: store, IDs: ids, Dispatcher: dispatcher, Logger: logger}),
		accounts:   NewAccountService(config.AuthConfig{JWTSecret: "test", BcryptCost: 4}, AccountDependencies{Users: users, IDs: ids, Logger: logger}),
		store:      store,
		dispatcher: dispatcher,
		metrics:    metrics,
	}
	env.admin = env.user(t, "admin", domain.RoleAdmin)
	return env
}

func (e *testEnv) user(t *testing.T, name string, role domain.Role) *domain.User {
	t.Helper()
	u, err := e.accounts.Create(context.Background(), UserCreateInput{Username: name, Password: "Str0ng!pass", Role: role})
	require.NoError(t, err)
	return u
}

// seed creates n tickets that all share one timestamp, so only the creation order
// separates them.
func (e *testEnv) seed(t *testing.T, n int) []domain.Ticket {
	t.Helper()
	e.tickets.Now = func() time.Time { return testEpoch }
	created := make([]domain.Ticket, 0, n)
	for i := 0; i < n; i++ {
		ticket, err := e.tickets.Create(context.Background(), e.admin.ID, TicketCreateInput{
			Subject:     "ticket",
			Description: "pool ticket",
		})
		require.NoError(t, err)
		created = append(created, *ticket)
	}
	return created
}

func creationOrders(tickets []domain.Ticket) []int64 {
	orders := make([]int64, len(tickets))
	for i, t := range tickets {
		orders[i] = t.CreationOrder
	}
	return orders
}

func seq(from, to int64) []int64 {
	out := make([]int64, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
