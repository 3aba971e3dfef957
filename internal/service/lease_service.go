package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lease-service/internal/config"
	"github.com/spec-kit/ticket-lease-service/internal/domain"
	"github.com/spec-kit/ticket-lease-service/internal/events"
	"github.com/spec-kit/ticket-lease-service/internal/observability"
	"github.com/spec-kit/ticket-lease-service/internal/repository"
	apperrors "github.com/spec-kit/ticket-lease-service/pkg/util/errorutil"
)

const tracerName = "ticket-lease-service"

// LeaseService distributes pool tickets among agents and records sales.
type LeaseService struct {
	tickets    repository.TicketStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.LeaseConfig
	tracer     trace.Tracer

	// Now is the clock; tests replace it.
	Now func() time.Time
}

// LeaseDependencies bundles collaborators for the lease service.
type LeaseDependencies struct {
	Tickets    repository.TicketStore
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewLeaseService builds the service.
func NewLeaseService(cfg config.LeaseConfig, deps LeaseDependencies) *LeaseService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Quota <= 0 {
		cfg.Quota = domain.DefaultLeaseQuota
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &LeaseService{
		tickets:    deps.Tickets,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		metrics:    deps.Metrics,
		cfg:        cfg,
		tracer:     otel.Tracer(tracerName),
		Now:        time.Now,
	}
}

// LeaseTickets tops the agent's held set up to quota from the unassigned pool and
// returns the held set in distribution order. A quota <= 0 uses the configured default.
// Calling it again without intervening sales returns the same set.
func (s *LeaseService) LeaseTickets(ctx context.Context, agentID int64, quota int) ([]domain.Ticket, error) {
	if quota <= 0 {
		quota = s.cfg.Quota
	}

	ctx, span := s.tracer.Start(ctx, "lease.tickets", trace.WithAttributes(
		attribute.Int64("agent.id", agentID),
		attribute.Int("lease.quota", quota),
	))
	defer span.End()

	var (
		held    []domain.Ticket
		granted []int64
	)
	err := s.inTx(ctx, "lease", func(tx repository.TicketTx) error {
		held, granted = nil, nil

		current, err := tx.LockHeld(ctx, agentID, quota)
		if err != nil {
			return fmt.Errorf("lock held tickets: %w", err)
		}
		if len(current) >= quota {
			held = current
			return nil
		}

		claimed, err := tx.ClaimUnassigned(ctx, agentID, quota-len(current), s.now())
		if err != nil {
			return fmt.Errorf("claim unassigned tickets: %w", err)
		}

		merged := append(current, claimed...)
		domain.SortTickets(merged)
		if len(merged) > quota {
			merged = merged[:quota]
		}
		held = merged
		granted = ticketIDs(claimed)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lease failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("lease.held", len(held)),
		attribute.Int("lease.granted", len(granted)),
	)
	s.metrics.RecordLease(len(granted))

	if len(granted) > 0 {
		s.logger.Info("tickets leased",
			zap.Int64("agent_id", agentID),
			zap.Int("granted", len(granted)),
			zap.Int("held", len(held)),
		)
		s.publish(ctx, events.EventTicketsLeased, agentID, events.TicketsLeasedPayload{
			AgentID:   agentID,
			TicketIDs: granted,
			HeldCount: len(held),
		})
	} else {
		s.logger.Debug("lease returned held set", zap.Int64("agent_id", agentID), zap.Int("held", len(held)))
	}

	if held == nil {
		held = []domain.Ticket{}
	}
	return held, nil
}

// Sell marks a ticket held by the agent as sold. It fails with repository.ErrNotFound,
// domain.ErrNotOwner or domain.ErrAlreadySold.
func (s *LeaseService) Sell(ctx context.Context, agentID, ticketID int64) error {
	ctx, span := s.tracer.Start(ctx, "lease.sell", trace.WithAttributes(
		attribute.Int64("agent.id", agentID),
		attribute.Int64("ticket.id", ticketID),
	))
	defer span.End()

	err := s.inTx(ctx, "sell", func(tx repository.TicketTx) error {
		ticket, err := tx.LockByID(ctx, ticketID)
		if err != nil {
			return fmt.Errorf("ticket %d: %w", ticketID, err)
		}
		if err := ticket.Validate(); err != nil {
			return fmt.Errorf("ticket %d: %w", ticketID, err)
		}
		if err := ticket.CanSell(agentID); err != nil {
			return fmt.Errorf("ticket %d: %w", ticketID, err)
		}
		return tx.MarkSold(ctx, ticketID, s.now())
	})
	s.metrics.RecordSell(sellOutcome(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, sellOutcome(err))
		return err
	}

	s.logger.Info("ticket sold", zap.Int64("agent_id", agentID), zap.Int64("ticket_id", ticketID))
	s.publish(ctx, events.EventTicketSold, agentID, events.TicketSoldPayload{TicketID: ticketID, AgentID: agentID})
	return nil
}

// ListHeld returns every ticket assigned to the agent, sold or not, in distribution order.
func (s *LeaseService) ListHeld(ctx context.Context, agentID int64, limit, offset int) ([]domain.Ticket, error) {
	return s.tickets.List(ctx, repository.TicketFilter{AssignedTo: &agentID, Limit: limit, Offset: offset})
}

// GetHeld returns one ticket if it is assigned to the agent.
func (s *LeaseService) GetHeld(ctx context.Context, agentID, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.HeldBy(agentID) {
		// Other agents' tickets are invisible, not forbidden.
		return nil, fmt.Errorf("ticket %d: %w", ticketID, repository.ErrNotFound)
	}
	return ticket, nil
}

// inTx runs fn in a fresh transaction per attempt. Only transient store failures are
// retried; exhausting the attempts reports ServiceUnavailable.
func (s *LeaseService) inTx(ctx context.Context, op string, fn func(tx repository.TicketTx) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff()
	if ceiling := s.cfg.MaxBackoff(); ceiling > 0 {
		b.MaxInterval = ceiling
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := s.tickets.WithTx(ctx, fn)
		if err != nil && !repository.IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.metrics.RecordRetry()
			s.logger.Warn("retrying transaction",
				zap.String("op", op),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}),
	)
	if err == nil {
		return nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	if repository.IsTransient(err) {
		return apperrors.NewServiceUnavailable(err)
	}
	return err
}

func (s *LeaseService) publish(ctx context.Context, typ events.EventType, actorID int64, payload any) {
	publishEvent(ctx, s.dispatcher, s.logger, typ, actorID, s.now(), payload)
}

func (s *LeaseService) now() time.Time {
	return storeTime(s.Now())
}

func ticketIDs(tickets []domain.Ticket) []int64 {
	ids := make([]int64, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
	}
	return ids
}

func sellOutcome(err error) string {
	switch {
	case err == nil:
		return "sold"
	case errors.Is(err, domain.ErrNotOwner):
		return "not_owner"
	case errors.Is(err, domain.ErrAlreadySold):
		return "already_sold"
	case errors.Is(err, repository.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
