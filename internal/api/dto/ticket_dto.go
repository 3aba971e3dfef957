package dto

import (
	"time"

	"github.com/spec-kit/ticket-lease-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

// UpdateTicketRequest payload. Omitted fields are left unchanged on PATCH.
type UpdateTicketRequest struct {
	Subject     *string `json:"subject"`
	Description *string `json:"description"`
}

// UserRef identifies the account that created a ticket.
type UserRef struct {
	ID       int64  `json:"id,string"`
	Username string `json:"username"`
}

// TicketView is the API representation of a ticket.
type TicketView struct {
	ID            int64      `json:"id,string"`
	Subject       string     `json:"subject"`
	Description   string     `json:"description"`
	CreatedBy     *UserRef   `json:"created_by"`
	AssignedTo    *int64     `json:"assigned_to,string"`
	AssignedAt    *time.Time `json:"assigned_at"`
	IsSold        bool       `json:"is_sold"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CreationOrder int64      `json:"creation_order"`
}

// NewTicketView renders a ticket; usernames resolves created_by.
func NewTicketView(t *domain.Ticket, usernames map[int64]string) TicketView {
	view := TicketView{
		ID:            t.ID,
		Subject:       t.Subject,
		Description:   t.Description,
		AssignedTo:    t.AssignedTo,
		AssignedAt:    t.AssignedAt,
		IsSold:        t.IsSold,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		CreationOrder: t.CreationOrder,
	}
	if t.CreatedBy != nil {
		view.CreatedBy = &UserRef{ID: *t.CreatedBy, Username: usernames[*t.CreatedBy]}
	}
	return view
}

// NewTicketViews renders a list, never nil.
func NewTicketViews(tickets []domain.Ticket, usernames map[int64]string) []TicketView {
	views := make([]TicketView, 0, len(tickets))
	for i := range tickets {
		views = append(views, NewTicketView(&tickets[i], usernames))
	}
	return views
}

// DetailResponse is the plain acknowledgement body.
type DetailResponse struct {
	Detail string `json:"detail"`
}
