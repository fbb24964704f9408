package middleware

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"socialapp/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

var errNoLimiterStore = errors.New("rate limit store unavailable")

// Rule is one rate-limited action. Requests are counted per caller (subject,
// or remote IP for anonymous callers) and, when Params is set, per target:
// Params names route parameters whose values join the key, so a like burst on
// one post does not consume the budget for another.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
	Params []string
	// FailClosed answers 503 instead of letting the request through when
	// Redis cannot be reached.
	FailClosed bool
}

// Limiter enforces Rules with a fixed-window counter in Redis.
type Limiter struct {
	rdb     *redis.Client
	enabled bool
}

// NewLimiter builds a limiter over rdb. A disabled limiter lets everything
// through; development and test profiles run disabled.
func NewLimiter(rdb *redis.Client, enabled bool) *Limiter {
	return &Limiter{rdb: rdb, enabled: enabled}
}

// Allow counts one hit on key and reports whether it is within rule.Limit,
// plus the time left in the current window.
func (l *Limiter) Allow(ctx context.Context, key string, rule Rule) (bool, time.Duration, error) {
	if !l.enabled {
		return true, 0, nil
	}
	if l.rdb == nil {
		return false, 0, errNoLimiterStore
	}

	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if cnt == 1 {
		if err := l.rdb.Expire(ctx, key, rule.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	if cnt <= int64(rule.Limit) {
		return true, 0, nil
	}

	ttl, err := l.rdb.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = rule.Window
	}
	return false, ttl, nil
}

// Handler returns the Fiber middleware enforcing rule.
func (l *Limiter) Handler(rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := rule.key(c)
		allowed, retryAfter, err := l.Allow(c.UserContext(), key, rule)
		if err != nil {
			if !rule.FailClosed {
				return c.Next()
			}
			observability.Logger.WarnContext(c.UserContext(), "rate limit store unavailable, refusing",
				slog.String("rule", rule.Name),
				slog.String("error", err.Error()),
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "rate limit unavailable",
			})
		}

		if !allowed {
			observability.RateLimitRejections.WithLabelValues(rule.Name).Inc()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many " + strings.ReplaceAll(rule.Name, "_", " ") + " requests, please slow down.",
			})
		}
		return c.Next()
	}
}

// key is rl:<rule>:<caller>[:<param>...].
func (r Rule) key(c *fiber.Ctx) string {
	var b strings.Builder
	b.WriteString("rl:")
	b.WriteString(r.Name)
	if sub := Subject(c); sub != "" {
		b.WriteString(":user:")
		b.WriteString(sub)
	} else {
		b.WriteString(":ip:")
		b.WriteString(c.IP())
	}
	for _, p := range r.Params {
		b.WriteByte(':')
		b.WriteString(c.Params(p))
	}
	return b.String()
}
