package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-lease-service/internal/domain"
	"github.com/spec-kit/ticket-lease-service/internal/events"
	"github.com/spec-kit/ticket-lease-service/internal/repository"
	apperrors "github.com/spec-kit/ticket-lease-service/pkg/util/errorutil"
)

func TestCreateAssignsIncreasingCreationOrder(t *testing.T) {
	env := newTestEnv(t)

	var created []int64
	env.dispatcher.Subscribe(events.EventTicketCreated, func(_ context.Context, e events.Event) error {
		created = append(created, e.Payload.(events.TicketChangedPayload).TicketID)
		return nil
	})

	tickets := env.seed(t, 5)

	assert.Equal(t, seq(1, 5), creationOrders(tickets))
	assert.Len(t, created, 5)
	for _, ticket := range tickets {
		assert.Equal(t, domain.TicketStateUnassigned, ticket.State())
		require.NotNil(t, ticket.CreatedBy)
		assert.Equal(t, env.admin.ID, *ticket.CreatedBy)
	}
}

func TestCreateValidatesContent(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.tickets.Create(context.Background(), env.admin.ID, TicketCreateInput{Subject: "  "})

	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Contains(t, domainErr.Details, "subject")
	assert.Contains(t, domainErr.Details, "description")
}

func TestUpdateChangesContentOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ticket := env.seed(t, 1)[0]
	agent := env.user(t, "agent", domain.RoleAgent)
	_, err := env.lease.LeaseTickets(ctx, agent.ID, 1)
	require.NoError(t, err)

	env.tickets.Now = func() time.Time { return testEpoch.Add(time.Minute) }
	subject := "renamed"
	updated, err := env.tickets.Update(ctx, env.admin.ID, ticket.ID, TicketUpdateInput{Subject: &subject})
	require.NoError(t, err)

	assert.Equal(t, "renamed", updated.Subject)
	assert.Equal(t, ticket.Description, updated.Description)
	assert.True(t, updated.HeldBy(agent.ID))
	assert.Equal(t, ticket.CreationOrder, updated.CreationOrder)
	assert.Equal(t, testEpoch.Add(time.Minute), updated.UpdatedAt)
}

func TestDeleteAndListTickets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tickets := env.seed(t, 4)
	agent := env.user(t, "agent", domain.RoleAgent)
	_, err := env.lease.LeaseTickets(ctx, agent.ID, 1)
	require.NoError(t, err)

	require.NoError(t, env.tickets.Delete(ctx, env.admin.ID, tickets[2].ID))
	assert.ErrorIs(t, env.tickets.Delete(ctx, env.admin.ID, tickets[2].ID), repository.ErrNotFound)

	all, err := env.tickets.List(ctx, TicketListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 4}, creationOrders(all))

	unassigned, err := env.tickets.List(ctx, TicketListFilter{Unassigned: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4}, creationOrders(unassigned))

	page, err := env.tickets.List(ctx, TicketListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, creationOrders(page))
}
