package telemetry

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedApp(t *testing.T, handler fiber.Handler) (*fiber.App, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	app := fiber.New()
	app.Use(FiberMiddleware(tp))
	app.Post("/", handler)
	return app, recorder
}

func TestFiberMiddlewareRecordsServerSpan(t *testing.T) {
	app, recorder := newTracedApp(t, func(c *fiber.Ctx) error {
		AddSpanEvent(c, "file.saved", attribute.String("file.name", "a.jpg"))
		SetSpanAttribute(c, "upload.filename", "a.jpg")
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(HeaderTraceID))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "POST /", span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)
	assert.Equal(t, span.SpanContext().TraceID().String(), resp.Header.Get(HeaderTraceID))

	require.Len(t, span.Events(), 1)
	assert.Equal(t, "file.saved", span.Events()[0].Name)
	assert.Contains(t, span.Attributes(), attribute.String("upload.filename", "a.jpg"))
	assert.Contains(t, span.Attributes(), attribute.Int("http.status_code", 200))
}

func TestFiberMiddlewareMarksServerErrors(t *testing.T) {
	app, recorder := newTracedApp(t, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "boom"})
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 500, resp.StatusCode)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestFiberMiddlewareLeavesClientErrorsOK(t *testing.T) {
	app, recorder := newTracedApp(t, func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing required image"})
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}
