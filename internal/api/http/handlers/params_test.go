package handlers

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/ticket-lease-service/pkg/util/errorutil"
)

func pageDetails(t *testing.T, query string) (int, int, map[string]any) {
	t.Helper()
	var (
		limit, offset int
		details       map[string]any
	)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/", func(c *fiber.Ctx) error {
		var err error
		limit, offset, err = page(c)
		var de *apperrors.DomainError
		if errors.As(err, &de) {
			details = de.Details
		}
		return nil
	})
	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/"+query, nil), -1)
	require.NoError(t, err)
	return limit, offset, details
}

func TestPageReportsOnlyFailingFields(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  []string
	}{
		{"limit too large", "?limit=500", []string{"limit"}},
		{"limit zero", "?limit=0&offset=3", []string{"limit"}},
		{"negative offset", "?offset=-1", []string{"offset"}},
		{"both", "?limit=-4&offset=-1", []string{"limit", "offset"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, details := pageDetails(t, tc.query)
			keys := make([]string, 0, len(details))
			for k := range details {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tc.want, keys)
		})
	}
}

func TestPageDefaults(t *testing.T) {
	limit, offset, details := pageDetails(t, "")
	assert.Equal(t, 50, limit)
	assert.Equal(t, 0, offset)
	assert.Nil(t, details)
}
