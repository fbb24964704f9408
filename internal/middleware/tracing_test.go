package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"socialapp/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func tracedApp(t *testing.T) (*fiber.App, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := observability.Tracer
	observability.Tracer = tp.Tracer("test")
	t.Cleanup(func() {
		observability.Tracer = prev
		_ = tp.Shutdown(context.Background())
	})

	app := fiber.New()
	app.Use(TracingMiddleware())
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(SubjectLocal, "u1")
		return c.Next()
	})
	app.Put("/api/posts/:id/comments/:commentId/like", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	app.Get("/api/broken", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusInternalServerError)
	})
	return app, rec
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingMiddleware_NamesSpanByRoute(t *testing.T) {
	app, rec := tracedApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodPut, "/api/posts/p1/comments/c9/like", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "PUT /api/posts/:id/comments/:commentId/like", span.Name())

	attrs := spanAttrs(span)
	assert.Equal(t, "p1", attrs["post.id"].AsString())
	assert.Equal(t, "c9", attrs["comment.id"].AsString())
	assert.Equal(t, "u1", attrs["user.subject"].AsString())
	assert.Equal(t, "/api/posts/:id/comments/:commentId/like", attrs["http.route"].AsString())
	assert.EqualValues(t, http.StatusOK, attrs["http.response.status_code"].AsInt64())
	assert.Equal(t, codes.Unset, span.Status().Code)
}

func TestTracingMiddleware_ServerErrorMarksSpan(t *testing.T) {
	app, rec := tracedApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/broken", nil))
	require.NoError(t, err)
	_ = resp.Body.Close()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/broken", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
