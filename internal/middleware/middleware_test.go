package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"lumen/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStructuredLogger_IncludesRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	app := fiber.New()
	app.Use(requestid.New())
	app.Use(ContextMiddleware())
	app.Use(StructuredLogger(logger))
	app.Get("/ping", func(c *fiber.Ctx) error {
		observability.LoggerFromContext(c.UserContext(), logger).Info("handler ran")
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(fiber.HeaderXRequestID, "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	entries := logs.All()
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "req-123", e.ContextMap()["request_id"])
	}
	assert.Equal(t, "request processed", entries[1].Message)
	assert.EqualValues(t, http.StatusNoContent, entries[1].ContextMap()["status"])
}

func TestStructuredLogger_LogsErrors(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	app := fiber.New()
	app.Use(StructuredLogger(zap.New(core)))
	app.Get("/boom", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	failed := logs.FilterMessage("request failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	assert.EqualValues(t, http.StatusTeapot, failed[0].ContextMap()["status"])
}

func TestStructuredLogger_UsesAppErrorHandlerStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusBadGateway
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
			return c.Status(status).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(StructuredLogger(zap.New(core)))
	app.Get("/upstream", func(c *fiber.Ctx) error {
		return errors.New("store down")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/upstream", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	// Unknown routes reach the handler chain as a 404 error.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	failed := logs.FilterMessage("request failed").All()
	require.Len(t, failed, 2)
	assert.EqualValues(t, http.StatusBadGateway, failed[0].ContextMap()["status"])
	assert.EqualValues(t, http.StatusNotFound, failed[1].ContextMap()["status"])
}

func TestTracingMiddleware_SetsTraceHeader(t *testing.T) {
	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Use(ContextMiddleware())

	var seen string
	app.Get("/traced", func(c *fiber.Ctx) error {
		seen, _ = c.UserContext().Value(observability.TraceIDKey).(string)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/traced", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
	assert.Equal(t, resp.Header.Get("X-Trace-ID"), seen)
}

func TestInitMetrics_IsSingleton(t *testing.T) {
	a := InitMetrics("lumen-test")
	b := InitMetrics("lumen-test")
	assert.Same(t, a, b)

	app := fiber.New()
	app.Use(MetricsMiddleware(a))
	a.RegisterAt(app, "/metrics")
	app.Get("/hello", func(c *fiber.Ctx) error { return c.SendString("hi") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/hello", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
