package middleware

import (
	"errors"
	"log/slog"
	"strings"

	"socialapp/internal/auth"
	"socialapp/internal/models"
	"socialapp/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// SubjectLocal is the Fiber locals key holding the caller's subject id.
const SubjectLocal = "subject"

// Identity resolves the bearer credential to a subject id. A missing or
// failed credential yields an anonymous caller (empty subject); handlers that
// need a caller reject that with RequireSubject.
func Identity(v auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			c.Locals(SubjectLocal, "")
			return c.Next()
		}

		subject, err := v.Verify(c.UserContext(), token)
		if err != nil {
			level := slog.LevelDebug
			if errors.Is(err, auth.ErrRevoked) {
				level = slog.LevelWarn
			}
			observability.Logger.Log(c.UserContext(), level, "credential rejected",
				slog.String("path", c.Path()),
				slog.String("error", err.Error()),
			)
			subject = ""
		}

		c.Locals(SubjectLocal, subject)
		if subject != "" {
			c.SetUserContext(observability.WithSubject(c.UserContext(), subject))
		}
		return c.Next()
	}
}

// RequireSubject rejects anonymous callers with 403.
func RequireSubject() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if Subject(c) == "" {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Authentication required"))
		}
		return c.Next()
	}
}

// Subject returns the caller's subject id, or "" for anonymous callers.
func Subject(c *fiber.Ctx) string {
	sub, _ := c.Locals(SubjectLocal).(string)
	return sub
}

// bearerToken reads "Authorization: Bearer <token>". Websocket upgrades may
// carry the token in the query string instead, since browsers cannot set
// headers on them.
func bearerToken(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if strings.HasPrefix(c.Path(), "/api/ws") {
		return c.Query("token")
	}
	return ""
}
