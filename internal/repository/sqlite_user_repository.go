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

type sqliteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository returns a UserStore on an embedded SQLite database.
func NewSQLiteUserRepository(db *sql.DB) UserStore {
	return &sqliteUserRepository{db: db}
}

func (r *sqliteUserRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO users (id, username, password_hash, role, active, created_at, updated_at)
        VALUES (?,?,?,?,?,?,?)`,
		user.ID,
		user.Username,
		user.PasswordHash,
		string(user.Role),
		user.Active,
		user.CreatedAt.UnixNano(),
		user.UpdatedAt.UnixNano(),
	)
	return classify(err)
}

func (r *sqliteUserRepository) Update(ctx context.Context, user *domain.User) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE users SET username=?, password_hash=?, role=?, active=?, updated_at=?
        WHERE id=?`,
		user.Username,
		user.PasswordHash,
		string(user.Role),
		user.Active,
		user.UpdatedAt.UnixNano(),
		user.ID,
	)
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

func (r *sqliteUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanSQLiteUser(r.db.QueryRowContext(ctx, `
        SELECT id, username, password_hash, role, active, created_at, updated_at
        FROM users WHERE id=?`, id))
}

func (r *sqliteUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return scanSQLiteUser(r.db.QueryRowContext(ctx, `
        SELECT id, username, password_hash, role, active, created_at, updated_at
        FROM users WHERE username=?`, username))
}

func (r *sqliteUserRepository) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	limit, offset = normalizePage(limit, offset, 50)
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, username, password_hash, role, active, created_at, updated_at
        FROM users ORDER BY username LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func (r *sqliteUserRepository) UsernamesByID(ctx context.Context, ids []int64) (map[int64]string, error) {
	result := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT id, username FROM users WHERE id IN (%s)`, strings.Join(placeholders, ","))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		result[id] = name
	}
	return result, rows.Err()
}

func (r *sqliteUserRepository) Delete(ctx context.Context, id int64, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	var referenced bool
	err = tx.QueryRowContext(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM tickets WHERE (assigned_to=? AND is_sold=1) OR created_by=?
        )`, id, id).Scan(&referenced)
	if err != nil {
		return err
	}
	if referenced {
		return fmt.Errorf("%w: user %d is referenced by tickets", ErrConflict, id)
	}

	if _, err := tx.ExecContext(ctx, `
        UPDATE tickets SET assigned_to=NULL, assigned_at=NULL, updated_at=?
        WHERE assigned_to=? AND is_sold=0`, now.UnixNano(), id); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
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
	return tx.Commit()
}

func scanSQLiteUser(row rowScanner) (*domain.User, error) {
	var (
		user      domain.User
		role      string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&role,
		&user.Active,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user.Role = domain.Role(role)
	user.CreatedAt = fromNanos(createdAt)
	user.UpdatedAt = fromNanos(updatedAt)
	return &user, nil
}
