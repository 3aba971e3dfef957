package repository

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/ticket-lease-service/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// TicketFilter captures listing parameters. Results are always in distribution order.
type TicketFilter struct {
	AssignedTo *int64
	Unassigned bool
	Sold       *bool
	Limit      int
	Offset     int
}

// TicketStore encapsulates ticket persistence.
type TicketStore interface {
	// WithTx runs fn inside one transaction. fn's error rolls the transaction back.
	WithTx(ctx context.Context, fn func(tx TicketTx) error) error
	// Create inserts the ticket and fills CreationOrder from the store's sequence.
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	UpdateContent(ctx context.Context, id int64, subject, description string, now time.Time) (*domain.Ticket, error)
	Delete(ctx context.Context, id int64) error
}

// TicketTx is the transactional view used by the lease engine and the sell transition.
type TicketTx interface {
	// LockHeld returns up to limit unsold tickets assigned to the agent, locked for
	// update, in distribution order.
	LockHeld(ctx context.Context, agentID int64, limit int) ([]domain.Ticket, error)
	// ClaimUnassigned assigns up to limit unassigned tickets to the agent, skipping
	// candidates claimed by concurrent transactions instead of waiting on them.
	ClaimUnassigned(ctx context.Context, agentID int64, limit int, now time.Time) ([]domain.Ticket, error)
	// LockByID loads one ticket locked for update.
	LockByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// MarkSold flips the sold flag of an assigned, unsold ticket.
	MarkSold(ctx context.Context, id int64, now time.Time) error
}

// UserStore defines persistence access for accounts.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context, limit, offset int) ([]domain.User, error)
	UsernamesByID(ctx context.Context, ids []int64) (map[int64]string, error)
	// Delete removes the account and returns its unsold tickets to the pool. Accounts
	// that own sold tickets or created tickets cannot be deleted.
	Delete(ctx context.Context, id int64, now time.Time) error
}

func normalizePage(limit, offset, def int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
