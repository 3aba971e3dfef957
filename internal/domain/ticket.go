package domain

import (
	"sort"
	"time"
)

// TicketState enumerates lifecycle states for tickets.
type TicketState string

const (
	TicketStateUnassigned TicketState = "UNASSIGNED"
	TicketStateAssigned   TicketState = "ASSIGNED"
	TicketStateSold       TicketState = "SOLD"
)

// DefaultLeaseQuota is the number of tickets an agent may hold at once.
const DefaultLeaseQuota = 15

// Ticket is the unit of work distributed among agents.
type Ticket struct {
	ID            int64
	Subject       string
	Description   string
	CreatedBy     *int64
	AssignedTo    *int64
	IsSold        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	AssignedAt    *time.Time
	CreationOrder int64
}

// State derives the lifecycle state from the stored fields.
func (t *Ticket) State() TicketState {
	switch {
	case t.IsSold:
		return TicketStateSold
	case t.AssignedTo != nil:
		return TicketStateAssigned
	default:
		return TicketStateUnassigned
	}
}

// HeldBy reports whether the ticket is currently assigned to the agent.
func (t *Ticket) HeldBy(agentID int64) bool {
	return t.AssignedTo != nil && *t.AssignedTo == agentID
}

// CanSell checks whether the agent may sell the ticket. Ownership is checked first, so
// a sold ticket held by someone else reports ErrNotOwner.
func (t *Ticket) CanSell(agentID int64) error {
	if !t.HeldBy(agentID) {
		return ErrNotOwner
	}
	if t.IsSold {
		return ErrAlreadySold
	}
	return nil
}

// Key returns the ordering key used for every distribution decision.
func (t *Ticket) Key() OrderKey {
	return OrderKey{CreatedAt: t.CreatedAt, Seq: t.CreationOrder}
}

// Validate checks the field invariants a stored ticket must satisfy.
func (t *Ticket) Validate() error {
	if t.AssignedTo == nil && t.AssignedAt != nil {
		return ErrAssignedAtWithoutOwner
	}
	if t.IsSold && t.AssignedTo == nil {
		return ErrSoldWithoutOwner
	}
	return nil
}

// OrderKey is the composite (createdAt, creationOrder) sort key. CreatedAt alone is
// not a total order; Seq breaks ties.
type OrderKey struct {
	CreatedAt time.Time
	Seq       int64
}

// Compare returns -1, 0 or 1 as k sorts before, equal to, or after other.
func (k OrderKey) Compare(other OrderKey) int {
	if c := k.CreatedAt.Compare(other.CreatedAt); c != 0 {
		return c
	}
	switch {
	case k.Seq < other.Seq:
		return -1
	case k.Seq > other.Seq:
		return 1
	default:
		return 0
	}
}

// Less reports whether k sorts strictly before other.
func (k OrderKey) Less(other OrderKey) bool {
	return k.Compare(other) < 0
}

// CompareTickets orders two tickets by their OrderKey.
func CompareTickets(a, b *Ticket) int {
	return a.Key().Compare(b.Key())
}

// SortTickets sorts tickets in place in distribution order.
func SortTickets(tickets []Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		return CompareTickets(&tickets[i], &tickets[j]) < 0
	})
}
