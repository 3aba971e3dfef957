package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketsLeased EventType = "tickets.leased"
	EventTicketSold    EventType = "ticket.sold"
	EventTicketCreated EventType = "ticket.created"
	EventTicketUpdated EventType = "ticket.updated"
	EventTicketDeleted EventType = "ticket.deleted"
)

// AllEventTypes lists every type services publish.
var AllEventTypes = []EventType{
	EventTicketsLeased,
	EventTicketSold,
	EventTicketCreated,
	EventTicketUpdated,
	EventTicketDeleted,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	ActorID   int64       `json:"actor_id,string"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketsLeasedPayload lists the tickets newly granted by one lease call.
type TicketsLeasedPayload struct {
	AgentID   int64   `json:"agent_id,string"`
	TicketIDs []int64 `json:"ticket_ids"`
	HeldCount int     `json:"held_count"`
}

// TicketSoldPayload payload.
type TicketSoldPayload struct {
	TicketID int64 `json:"ticket_id,string"`
	AgentID  int64 `json:"agent_id,string"`
}

// TicketChangedPayload describes admin-side create, update and delete.
type TicketChangedPayload struct {
	TicketID      int64  `json:"ticket_id,string"`
	Subject       string `json:"subject,omitempty"`
	CreationOrder int64  `json:"creation_order,omitempty"`
}
