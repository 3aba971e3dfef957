package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/ticket-lease-service/pkg/util/errorutil"
)

const maxPageSize = 200

func pathID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewNotFound("resource", map[string]any{"id": c.Params("id")})
	}
	return id, nil
}

// page reads limit/offset query parameters. Only the failing fields are reported.
func page(c *fiber.Ctx) (limit, offset int, err error) {
	limit = c.QueryInt("limit", 50)
	offset = c.QueryInt("offset", 0)

	details := map[string]any{}
	if limit <= 0 || limit > maxPageSize {
		details["limit"] = "must be within [1, 200]"
	}
	if offset < 0 {
		details["offset"] = "must not be negative"
	}
	if len(details) > 0 {
		return 0, 0, apperrors.NewValidationError("invalid pagination", details)
	}
	return limit, offset, nil
}

func queryBool(c *fiber.Ctx, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid query parameter", map[string]any{key: "must be a boolean"})
	}
	return &v, nil
}

func queryInt64(c *fiber.Ctx, key string) (*int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid query parameter", map[string]any{key: "must be an integer id"})
	}
	return &v, nil
}
