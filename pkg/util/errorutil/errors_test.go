package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/ticket-lease-service/internal/domain"
	"github.com/spec-kit/ticket-lease-service/internal/repository"
)

func TestToDomainErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"not owner", fmt.Errorf("sell: %w", domain.ErrNotOwner), "UNAUTHORIZED_OWNER", http.StatusForbidden},
		{"already sold", domain.ErrAlreadySold, "ALREADY_SOLD", http.StatusBadRequest},
		{"missing row", fmt.Errorf("get: %w", repository.ErrNotFound), "NOT_FOUND", http.StatusNotFound},
		{"conflict", fmt.Errorf("%w: users_username_key", repository.ErrConflict), "CONFLICT", http.StatusConflict},
		{"transient", &pgconn.PgError{Code: "40P01"}, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable},
		{"fiber", fiber.NewError(http.StatusForbidden, "insufficient role"), "FORBIDDEN", http.StatusForbidden},
		{"unknown", errors.New("boom"), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToDomainError(tc.err)
			assert.Equal(t, tc.code, got.Code)
			assert.Equal(t, tc.status, got.HTTPStatus)
		})
	}
}

func TestWrappedSentinelsStayMatchable(t *testing.T) {
	err := ToDomainError(domain.ErrAlreadySold)
	assert.ErrorIs(t, err, domain.ErrAlreadySold)

	var domainErr *DomainError
	assert.True(t, errors.As(NewServiceUnavailable(errors.New("busy")), &domainErr))
	assert.Equal(t, "SERVICE_UNAVAILABLE", domainErr.Code)
}
