package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lease-service/internal/config"
	"github.com/spec-kit/ticket-lease-service/internal/domain"
	"github.com/spec-kit/ticket-lease-service/internal/events"
)

type appendCall struct {
	stream string
	maxLen int64
	values map[string]any
}

type recordingStream struct {
	mu    sync.Mutex
	calls []appendCall
	err   error
}

func (s *recordingStream) AppendEvent(_ context.Context, stream string, maxLen int64, values map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.calls = append(s.calls, appendCall{stream: stream, maxLen: maxLen, values: values})
	return "1-0", nil
}

func (s *recordingStream) byType(typ events.EventType) []appendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []appendCall
	for _, c := range s.calls {
		if c.values["type"] == string(typ) {
			out = append(out, c)
		}
	}
	return out
}

func TestEventRelayForwardsLeaseAndSale(t *testing.T) {
	env := newTestEnv(t)
	stream := &recordingStream{}
	NewEventRelay(env.dispatcher, stream, zap.NewNop(), config.EventsConfig{Stream: "ticket-events", StreamMax: 500}).RegisterHandlers()

	pool := env.seed(t, 3)
	agent := env.user(t, "agent", domain.RoleAgent)
	ctx := context.Background()

	_, err := env.lease.LeaseTickets(ctx, agent.ID, 0)
	require.NoError(t, err)
	require.NoError(t, env.lease.Sell(ctx, agent.ID, pool[0].ID))

	created := stream.byType(events.EventTicketCreated)
	assert.Len(t, created, 3)

	leased := stream.byType(events.EventTicketsLeased)
	require.Len(t, leased, 1)
	assert.Equal(t, "ticket-events", leased[0].stream)
	assert.Equal(t, int64(500), leased[0].maxLen)

	var payload events.TicketsLeasedPayload
	require.NoError(t, json.Unmarshal([]byte(leased[0].values["payload"].(string)), &payload))
	assert.Equal(t, agent.ID, payload.AgentID)
	assert.Equal(t, 3, payload.HeldCount)
	assert.Equal(t, []int64{pool[0].ID, pool[1].ID, pool[2].ID}, payload.TicketIDs)

	sold := stream.byType(events.EventTicketSold)
	require.Len(t, sold, 1)
	assert.NotEmpty(t, sold[0].values["id"])
}

func TestEventRelayFailureDoesNotFailTheOperation(t *testing.T) {
	env := newTestEnv(t)
	stream := &recordingStream{err: errors.New("stream down")}
	NewEventRelay(env.dispatcher, stream, zap.NewNop(), config.EventsConfig{Stream: "ticket-events"}).RegisterHandlers()

	env.seed(t, 2)
	agent := env.user(t, "agent", domain.RoleAgent)

	held, err := env.lease.LeaseTickets(context.Background(), agent.ID, 0)
	require.NoError(t, err)
	assert.Len(t, held, 2)
}

func TestEventRelayWithoutStreamOnlyLogs(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	relay := NewEventRelay(dispatcher, nil, zap.NewNop(), config.EventsConfig{Stream: "ticket-events"})
	relay.RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{ID: "e1", Type: events.EventTicketSold})
	assert.NoError(t, err)
}
