package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/ticket-lease-service/internal/config"
)

func TestRequestLoggerCountsByRoutePattern(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	metrics := NewMetrics()

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(RequestLogger(zap.New(core), metrics))
	app.Get("/tickets/:id", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	for _, id := range []string{"1", "2"} {
		resp, err := app.Test(httptest.NewRequest("GET", "/tickets/"+id, nil), -1)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	}

	req := httptest.NewRequest("GET", "/tickets/3", nil)
	req.Header.Set(RequestIDHeader, "fixed-id")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", resp.Header.Get(RequestIDHeader))

	snap := metrics.Snapshot()
	assert.Equal(t, int64(3), snap.Requests["/tickets/:id|GET|204"])
	assert.Equal(t, 3, logs.FilterMessage("request").Len())
}

func TestMetricsLeaseAndSellCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordLease(15)
	m.RecordLease(0)
	m.RecordRetry()
	m.RecordSell("sold")
	m.RecordSell("already_sold")
	m.RecordSell("sold")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.LeaseCalls)
	assert.Equal(t, int64(15), snap.TicketsLeased)
	assert.Equal(t, int64(1), snap.LeaseRetries)
	assert.Equal(t, map[string]int64{"sold": 2, "already_sold": 1}, snap.SellOutcomes)

	snap.SellOutcomes["sold"] = 99
	assert.Equal(t, int64(2), m.Snapshot().SellOutcomes["sold"])
}

func TestNilMetricsIgnoresRecords(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLease(1)
		m.RecordSell("sold")
		m.RecordRequest("/", "GET", 200, time.Millisecond)
	})
}

func TestNewLoggerLevels(t *testing.T) {
	fallback, err := NewLogger(config.LoggerConfig{Level: "chatty"})
	require.NoError(t, err)
	assert.True(t, fallback.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, fallback.Core().Enabled(zapcore.DebugLevel))

	logger, err := NewLogger(config.LoggerConfig{Level: "warn", Name: "ticketctl"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
}
