package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-lease-service/internal/api/dto"
	"github.com/spec-kit/ticket-lease-service/internal/auth"
	"github.com/spec-kit/ticket-lease-service/internal/domain"
	"github.com/spec-kit/ticket-lease-service/internal/service"
	apperrors "github.com/spec-kit/ticket-lease-service/pkg/util/errorutil"
)

// TicketsHandler exposes leasing, selling and ticket administration.
type TicketsHandler struct {
	lease    *service.LeaseService
	tickets  *service.TicketService
	accounts *service.AccountService
	policy   *auth.Policy
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(lease *service.LeaseService, tickets *service.TicketService, accounts *service.AccountService, policy *auth.Policy) *TicketsHandler {
	return &TicketsHandler{lease: lease, tickets: tickets, accounts: accounts, policy: policy}
}

// FetchTickets GET /api/tickets/fetch-tickets.
func (h *TicketsHandler) FetchTickets(c *fiber.Ctx) error {
	principal, err := caller(c)
	if err != nil {
		return err
	}
	held, err := h.lease.LeaseTickets(c.UserContext(), principal.User.ID, 0)
	if err != nil {
		return err
	}
	return h.renderList(c, held)
}

// Sell POST /api/tickets/:id/sell.
func (h *TicketsHandler) Sell(c *fiber.Ctx) error {
	principal, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.lease.Sell(c.UserContext(), principal.User.ID, id); err != nil {
		return err
	}
	return c.JSON(dto.DetailResponse{Detail: "Ticket marked as sold."})
}

// List GET /api/tickets. Agents see their own tickets; roles with list_all see every ticket.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	principal, err := caller(c)
	if err != nil {
		return err
	}
	limit, offset, err := page(c)
	if err != nil {
		return err
	}

	var tickets []domain.Ticket
	if principal.Can(h.policy, auth.OpTicketListAll) {
		filter := service.TicketListFilter{Limit: limit, Offset: offset, Unassigned: c.QueryBool("unassigned")}
		if filter.AssignedTo, err = queryInt64(c, "assigned_to"); err != nil {
			return err
		}
		if filter.Sold, err = queryBool(c, "is_sold"); err != nil {
			return err
		}
		tickets, err = h.tickets.List(c.UserContext(), filter)
	} else {
		tickets, err = h.lease.ListHeld(c.UserContext(), principal.User.ID, limit, offset)
	}
	if err != nil {
		return err
	}
	return h.renderList(c, tickets)
}

// Get GET /api/tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	principal, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var ticket *domain.Ticket
	if principal.Can(h.policy, auth.OpTicketListAll) {
		ticket, err = h.tickets.Get(c.UserContext(), id)
	} else {
		ticket, err = h.lease.GetHeld(c.UserContext(), principal.User.ID, id)
	}
	if err != nil {
		return err
	}
	return h.renderOne(c, http.StatusOK, ticket)
}

// Create POST /api/tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	principal, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.Create(c.UserContext(), principal.User.ID, service.TicketCreateInput{
		Subject:     req.Subject,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return h.renderOne(c, http.StatusCreated, ticket)
}

// Update PUT|PATCH /api/tickets/:id. PUT requires both fields.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	principal, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if c.Method() == fiber.MethodPut && (req.Subject == nil || req.Description == nil) {
		return apperrors.NewValidationError("subject and description required", nil)
	}

	ticket, err := h.tickets.Update(c.UserContext(), principal.User.ID, id, service.TicketUpdateInput{
		Subject:     req.Subject,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return h.renderOne(c, http.StatusOK, ticket)
}

// Delete DELETE /api/tickets/:id.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	principal, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.tickets.Delete(c.UserContext(), principal.User.ID, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *TicketsHandler) renderList(c *fiber.Ctx, tickets []domain.Ticket) error {
	names, err := h.accounts.Usernames(c.UserContext(), tickets)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketViews(tickets, names)})
}

func (h *TicketsHandler) renderOne(c *fiber.Ctx, status int, ticket *domain.Ticket) error {
	names, err := h.accounts.Usernames(c.UserContext(), []domain.Ticket{*ticket})
	if err != nil {
		return err
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewTicketView(ticket, names)})
}

func caller(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}
