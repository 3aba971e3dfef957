package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/ticket-lease-service/internal/domain"
)

// SQLite stores timestamps as unix nanoseconds so ORDER BY compares them numerically.
const sqliteTicketColumns = `id, subject, description, created_by, assigned_to, is_sold,
       created_at, updated_at, assigned_at, creation_order`

// claimBatch bounds how many candidates one scan step reads before claiming them.
const claimBatch = 32

type sqliteTicketRepository struct {
	db *sql.DB
}

// NewSQLiteTicketRepository returns a TicketStore on an embedded SQLite database.
// SQLite has no row locks; claims are conditional updates that only succeed while the
// row is still unassigned, and a lost race moves on to the next candidate.
func NewSQLiteTicketRepository(db *sql.DB) TicketStore {
	return &sqliteTicketRepository{db: db}
}

func (r *sqliteTicketRepository) WithTx(ctx context.Context, fn func(tx TicketTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&sqliteTicketTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *sqliteTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	// Sequence row, not max(creation_order)+1.
	const next = `UPDATE sequences SET value = value + 1 WHERE name = 'ticket_creation_order' RETURNING value`
	if err := tx.QueryRowContext(ctx, next).Scan(&ticket.CreationOrder); err != nil {
		return fmt.Errorf("next creation order: %w", err)
	}

	const query = `
        INSERT INTO tickets (id, subject, description, created_by, is_sold, created_at, updated_at, creation_order)
        VALUES (?,?,?,?,0,?,?,?)`
	if _, err := tx.ExecContext(ctx, query,
		ticket.ID,
		ticket.Subject,
		ticket.Description,
		nullableInt(ticket.CreatedBy),
		ticket.CreatedAt.UnixNano(),
		ticket.UpdatedAt.UnixNano(),
		ticket.CreationOrder,
	); err != nil {
		return classify(err)
	}
	return tx.Commit()
}

func (r *sqliteTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + sqliteTicketColumns + ` FROM tickets WHERE id=?`
	return scanSQLiteTicket(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteTicketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AssignedTo != nil {
		clauses = append(clauses, "assigned_to=?")
		args = append(args, *filter.AssignedTo)
	}
	if filter.Unassigned {
		clauses = append(clauses, "assigned_to IS NULL")
	}
	if filter.Sold != nil {
		clauses = append(clauses, "is_sold=?")
		args = append(args, *filter.Sold)
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset, 50)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at, creation_order LIMIT %d OFFSET %d`,
		sqliteTicketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLiteTickets(rows)
}

func (r *sqliteTicketRepository) UpdateContent(ctx context.Context, id int64, subject, description string, now time.Time) (*domain.Ticket, error) {
	query := `UPDATE tickets SET subject=?, description=?, updated_at=? WHERE id=? RETURNING ` + sqliteTicketColumns
	return scanSQLiteTicket(r.db.QueryRowContext(ctx, query, subject, description, now.UnixNano(), id))
}

func (r *sqliteTicketRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tickets WHERE id=?`, id)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type sqliteTicketTx struct {
	tx *sql.Tx
}

func (t *sqliteTicketTx) LockHeld(ctx context.Context, agentID int64, limit int) ([]domain.Ticket, error) {
	query := `
        SELECT ` + sqliteTicketColumns + `
        FROM tickets
        WHERE assigned_to=? AND is_sold=0
        ORDER BY created_at, creation_order
        LIMIT ?`
	rows, err := t.tx.QueryContext(ctx, query, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSQLiteTickets(rows)
}

func (t *sqliteTicketTx) ClaimUnassigned(ctx context.Context, agentID int64, limit int, now time.Time) ([]domain.Ticket, error) {
	claimed := make([]domain.Ticket, 0, limit)
	var after *domain.OrderKey

	for len(claimed) < limit {
		candidates, err := t.candidates(ctx, after, claimBatch)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			break
		}
		for _, key := range candidates {
			if len(claimed) == limit {
				break
			}
			ticket, ok, err := t.claim(ctx, key.id, agentID, now)
			if err != nil {
				return nil, err
			}
			if ok {
				claimed = append(claimed, *ticket)
			}
		}
		last := candidates[len(candidates)-1].key
		after = &last
	}
	return claimed, nil
}

type candidateKey struct {
	id  int64
	key domain.OrderKey
}

func (t *sqliteTicketTx) candidates(ctx context.Context, after *domain.OrderKey, n int) ([]candidateKey, error) {
	query := `SELECT id, created_at, creation_order FROM tickets WHERE assigned_to IS NULL AND is_sold=0`
	args := []any{}
	if after != nil {
		query += ` AND (created_at, creation_order) > (?, ?)`
		args = append(args, after.CreatedAt.UnixNano(), after.Seq)
	}
	query += ` ORDER BY created_at, creation_order LIMIT ?`
	args = append(args, n)

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []candidateKey
	for rows.Next() {
		var (
			c         candidateKey
			createdAt int64
		)
		if err := rows.Scan(&c.id, &createdAt, &c.key.Seq); err != nil {
			return nil, err
		}
		c.key.CreatedAt = fromNanos(createdAt)
		result = append(result, c)
	}
	return result, rows.Err()
}

// claim succeeds only if the row is still unassigned at write time.
func (t *sqliteTicketTx) claim(ctx context.Context, id, agentID int64, now time.Time) (*domain.Ticket, bool, error) {
	query := `
        UPDATE tickets SET assigned_to=?, assigned_at=?, updated_at=?
        WHERE id=? AND assigned_to IS NULL AND is_sold=0
        RETURNING ` + sqliteTicketColumns
	ticket, err := scanSQLiteTicket(t.tx.QueryRowContext(ctx, query, agentID, now.UnixNano(), now.UnixNano(), id))
	if errors.Is(err, ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ticket, true, nil
}

func (t *sqliteTicketTx) LockByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + sqliteTicketColumns + ` FROM tickets WHERE id=?`
	return scanSQLiteTicket(t.tx.QueryRowContext(ctx, query, id))
}

func (t *sqliteTicketTx) MarkSold(ctx context.Context, id int64, now time.Time) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE tickets SET is_sold=1, updated_at=? WHERE id=? AND is_sold=0 AND assigned_to IS NOT NULL`,
		now.UnixNano(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: ticket %d is not sellable", ErrConflict, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket     domain.Ticket
		createdBy  sql.NullInt64
		assignedTo sql.NullInt64
		assignedAt sql.NullInt64
		createdAt  int64
		updatedAt  int64
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.Description,
		&createdBy,
		&assignedTo,
		&ticket.IsSold,
		&createdAt,
		&updatedAt,
		&assignedAt,
		&ticket.CreationOrder,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	ticket.CreatedBy = int64Ptr(createdBy)
	ticket.AssignedTo = int64Ptr(assignedTo)
	ticket.CreatedAt = fromNanos(createdAt)
	ticket.UpdatedAt = fromNanos(updatedAt)
	if assignedAt.Valid {
		at := fromNanos(assignedAt.Int64)
		ticket.AssignedAt = &at
	}
	return &ticket, nil
}

func scanSQLiteTickets(rows *sql.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanSQLiteTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
