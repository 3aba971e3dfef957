package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/ticket-lease-service/internal/domain"
)

// PgxPool is the subset of *pgxpool.Pool used by the Postgres repositories.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

const ticketColumns = `id, subject, description, created_by, assigned_to, is_sold,
               created_at, updated_at, assigned_at, creation_order`

type ticketRepository struct {
	pool PgxPool
}

// NewTicketRepository returns a Postgres-backed TicketStore.
func NewTicketRepository(pool PgxPool) TicketStore {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) WithTx(ctx context.Context, fn func(tx TicketTx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&pgTicketTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	// creation_order defaults to nextval of a dedicated sequence.
	const query = `
        INSERT INTO tickets (id, subject, description, created_by, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING creation_order`
	err := r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.Subject,
		ticket.Description,
		ticket.CreatedBy,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Scan(&ticket.CreationOrder)
	return classify(err)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "assigned_to IS NULL")
	}
	if filter.Sold != nil {
		args = append(args, *filter.Sold)
		clauses = append(clauses, fmt.Sprintf("is_sold=$%d", len(args)))
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset, 50)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at, creation_order LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) UpdateContent(ctx context.Context, id int64, subject, description string, now time.Time) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET subject=$1, description=$2, updated_at=$3
        WHERE id=$4
        RETURNING ` + ticketColumns
	return scanTicket(r.pool.QueryRow(ctx, query, subject, description, now, id))
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type pgTicketTx struct {
	tx pgx.Tx
}

func (t *pgTicketTx) LockHeld(ctx context.Context, agentID int64, limit int) ([]domain.Ticket, error) {
	query := `
        SELECT ` + ticketColumns + `
        FROM tickets
        WHERE assigned_to=$1 AND is_sold=FALSE
        ORDER BY created_at, creation_order
        LIMIT $2
        FOR UPDATE`
	rows, err := t.tx.Query(ctx, query, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (t *pgTicketTx) ClaimUnassigned(ctx context.Context, agentID int64, limit int, now time.Time) ([]domain.Ticket, error) {
	if limit <= 0 {
		return nil, nil
	}
	// Rows locked by a concurrent claim are skipped, not waited on.
	query := `
        WITH candidates AS (
            SELECT id FROM tickets
            WHERE assigned_to IS NULL AND is_sold=FALSE
            ORDER BY created_at, creation_order
            LIMIT $2
            FOR UPDATE SKIP LOCKED
        )
        UPDATE tickets t
        SET assigned_to=$1, assigned_at=$3, updated_at=$3
        FROM candidates c
        WHERE t.id = c.id
        RETURNING t.id, t.subject, t.description, t.created_by, t.assigned_to, t.is_sold,
                  t.created_at, t.updated_at, t.assigned_at, t.creation_order`
	rows, err := t.tx.Query(ctx, query, agentID, limit, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	claimed, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	// UPDATE ... RETURNING does not preserve the CTE's order.
	domain.SortTickets(claimed)
	return claimed, nil
}

func (t *pgTicketTx) LockByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return scanTicket(t.tx.QueryRow(ctx, query, id))
}

func (t *pgTicketTx) MarkSold(ctx context.Context, id int64, now time.Time) error {
	const query = `
        UPDATE tickets SET is_sold=TRUE, updated_at=$2
        WHERE id=$1 AND is_sold=FALSE AND assigned_to IS NOT NULL`
	cmd, err := t.tx.Exec(ctx, query, id, now)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: ticket %d is not sellable", ErrConflict, id)
	}
	return nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.IsSold,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.AssignedAt,
		&ticket.CreationOrder,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Subject,
			&ticket.Description,
			&ticket.CreatedBy,
			&ticket.AssignedTo,
			&ticket.IsSold,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.AssignedAt,
			&ticket.CreationOrder,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
