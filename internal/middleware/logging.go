// Package middleware provides Fiber middleware for logging, identity, rate
// limiting, metrics, and tracing.
package middleware

import (
	"log/slog"
	"time"

	"socialapp/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// ContextMiddleware injects request ID, subject and trace ID from Fiber locals into the request context.
// This allows these values to be picked up by the context-aware logger even in deep service layers.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			ctx = observability.WithRequestID(ctx, rid)
		}

		// Identity usually runs later and adds the subject itself; this covers
		// handlers mounted behind a custom auth chain.
		if sub, ok := c.Locals(SubjectLocal).(string); ok && sub != "" {
			ctx = observability.WithSubject(ctx, sub)
		}

		if tid, ok := c.Locals("traceID").(string); ok && tid != "" {
			ctx = observability.WithTraceID(ctx, tid)
		}

		c.SetUserContext(ctx)
		return c.Next()
	}
}

// StructuredLogger returns a Fiber middleware for logging requests using slog
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		status := c.Response().StatusCode()
		latency := time.Since(start)

		fields := []any{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", latency),
			slog.String("user_agent", c.Get("User-Agent")),
		}

		// UserContext carries request_id/subject for the ctxHandler.
		ctx := c.UserContext()
		switch {
		case err != nil:
			fields = append(fields, slog.String("error", err.Error()))
			observability.Logger.ErrorContext(ctx, "request failed", fields...)
		case status >= fiber.StatusInternalServerError:
			observability.Logger.ErrorContext(ctx, "request failed", fields...)
		default:
			observability.Logger.InfoContext(ctx, "request processed", fields...)
		}

		return err
	}
}
