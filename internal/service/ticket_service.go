package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lease-service/internal/domain"
	"github.com/spec-kit/ticket-lease-service/internal/events"
	"github.com/spec-kit/ticket-lease-service/internal/repository"
	apperrors "github.com/spec-kit/ticket-lease-service/pkg/util/errorutil"
)

// IDGenerator hands out unique int64 ids.
type IDGenerator interface {
	Next() int64
}

// TicketService maintains the ticket pool on behalf of administrators.
type TicketService struct {
	tickets    repository.TicketStore
	ids        IDGenerator
	dispatcher events.Dispatcher
	logger     *zap.Logger

	Now func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Tickets    repository.TicketStore
	IDs        IDGenerator
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
}

// TicketUpdateInput carries the editable fields; nil leaves a field unchanged.
type TicketUpdateInput struct {
	Subject     *string
	Description *string
}

// TicketListFilter narrows admin listings.
type TicketListFilter struct {
	AssignedTo *int64
	Unassigned bool
	Sold       *bool
	Limit      int
	Offset     int
}

// NewTicketService builds the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.Tickets,
		ids:        deps.IDs,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		Now:        time.Now,
	}
}

// Create adds an unassigned ticket to the pool.
func (s *TicketService) Create(ctx context.Context, actorID int64, input TicketCreateInput) (*domain.Ticket, error) {
	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)
	if err := validateContent(&subject, &description); err != nil {
		return nil, err
	}

	now := storeTime(s.Now())
	ticket := &domain.Ticket{
		ID:          s.ids.Next(),
		Subject:     subject,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if actorID != 0 {
		ticket.CreatedBy = &actorID
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	s.logger.Info("ticket created", zap.Int64("ticket_id", ticket.ID), zap.Int64("creation_order", ticket.CreationOrder))
	publishEvent(ctx, s.dispatcher, s.logger, events.EventTicketCreated, actorID, now, events.TicketChangedPayload{
		TicketID:      ticket.ID,
		Subject:       ticket.Subject,
		CreationOrder: ticket.CreationOrder,
	})
	return ticket, nil
}

// Update edits subject and description. Ownership and sale state are never touched.
func (s *TicketService) Update(ctx context.Context, actorID, ticketID int64, input TicketUpdateInput) (*domain.Ticket, error) {
	current, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	subject, description := current.Subject, current.Description
	if input.Subject != nil {
		subject = strings.TrimSpace(*input.Subject)
	}
	if input.Description != nil {
		description = strings.TrimSpace(*input.Description)
	}
	if err := validateContent(&subject, &description); err != nil {
		return nil, err
	}

	now := storeTime(s.Now())
	updated, err := s.tickets.UpdateContent(ctx, ticketID, subject, description, now)
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.dispatcher, s.logger, events.EventTicketUpdated, actorID, now, events.TicketChangedPayload{
		TicketID: updated.ID,
		Subject:  updated.Subject,
	})
	return updated, nil
}

// Delete removes a ticket regardless of its state.
func (s *TicketService) Delete(ctx context.Context, actorID, ticketID int64) error {
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return err
	}
	s.logger.Info("ticket deleted", zap.Int64("ticket_id", ticketID), zap.Int64("actor_id", actorID))
	publishEvent(ctx, s.dispatcher, s.logger, events.EventTicketDeleted, actorID, storeTime(s.Now()), events.TicketChangedPayload{
		TicketID: ticketID,
	})
	return nil
}

// Get returns any ticket.
func (s *TicketService) Get(ctx context.Context, ticketID int64) (*domain.Ticket, error) {
	return s.tickets.GetByID(ctx, ticketID)
}

// List returns tickets in distribution order.
func (s *TicketService) List(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	return s.tickets.List(ctx, repository.TicketFilter{
		AssignedTo: filter.AssignedTo,
		Unassigned: filter.Unassigned,
		Sold:       filter.Sold,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

func validateContent(subject, description *string) error {
	details := map[string]any{}
	if *subject == "" {
		details["subject"] = []string{"This field may not be blank."}
	} else if len(*subject) > 255 {
		details["subject"] = []string{"Ensure this field has no more than 255 characters."}
	}
	if *description == "" {
		details["description"] = []string{"This field may not be blank."}
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket", details)
	}
	return nil
}
