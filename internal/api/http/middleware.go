package http

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lease-service/internal/observability"
	apperrors "github.com/spec-kit/ticket-lease-service/pkg/util/errorutil"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(observability.RequestLogger(logger, metrics))
	app.Use(errorHandlingMiddleware(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// errorPayload is the body every failed request gets: {"error":{...}}.
type errorPayload struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					zap.String("request_id", c.GetRespHeader(observability.RequestIDHeader)),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = apperrors.NewInternalError(fmt.Errorf("panic: %v", r))
			}
			if err != nil {
				err = renderError(c, logger, metrics, err)
			}
		}()
		return c.Next()
	}
}

// renderError maps err onto its DomainError, counts it, logs it by severity and writes
// the JSON error body.
func renderError(c *fiber.Ctx, logger *zap.Logger, metrics *observability.Metrics, err error) error {
	de := apperrors.ToDomainError(err)

	route := c.Path()
	if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
		route = r.Path
	}
	metrics.RecordError(route, c.Method(), de.Code)

	fields := []zap.Field{
		zap.String("request_id", c.GetRespHeader(observability.RequestIDHeader)),
		zap.String("method", c.Method()),
		zap.String("route", route),
		zap.String("code", de.Code),
		zap.Int("status", de.HTTPStatus),
	}
	switch {
	case de.HTTPStatus >= fiber.StatusInternalServerError:
		logger.Error("request failed", append(fields, zap.Error(de))...)
	case de.Code == apperrors.CodeNotOwner || de.Code == apperrors.CodeAlreadySold:
		logger.Info("sell rejected", fields...)
	default:
		logger.Debug("request rejected", fields...)
	}

	return c.Status(de.HTTPStatus).JSON(errorPayload{Error: errorBody{
		Code:    de.Code,
		Message: de.Message,
		Details: de.Details,
	}})
}
