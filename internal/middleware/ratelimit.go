package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// CodeRateLimited is returned when a caller exceeds a Rule.
const CodeRateLimited = "RATE_LIMITED"

var errNoRedis = errors.New("redis client is nil")

// Rule is a fixed-window budget for one write endpoint.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
	// FailClosed rejects requests with 503 when the counter store is down.
	FailClosed bool
}

// Budgets for the write endpoints that are cheap to abuse.
var (
	RegisterRule = Rule{Name: "register", Limit: 3, Window: 10 * time.Minute}
	LoginRule    = Rule{Name: "login", Limit: 10, Window: 5 * time.Minute}
	PostRule     = Rule{Name: "create_post", Limit: 10, Window: 5 * time.Minute}
	CommentRule  = Rule{Name: "create_comment", Limit: 10, Window: time.Minute}
	FollowRule   = Rule{Name: "follow", Limit: 30, Window: time.Minute}
)

// Decision is the outcome of counting one request against a Rule.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts requests per caller in redis under rl:<rule>:<caller>.
type Limiter struct {
	rdb      *redis.Client
	disabled bool
}

// NewLimiter returns a limiter backed by rdb. Limits are not enforced in
// the development and test environments.
func NewLimiter(rdb *redis.Client, env string) *Limiter {
	switch env {
	case "", "development", "test":
		return &Limiter{rdb: rdb, disabled: true}
	}
	return &Limiter{rdb: rdb}
}

// Allow counts one request by caller against rule.
func (l *Limiter) Allow(ctx context.Context, rule Rule, caller string) (Decision, error) {
	if l.disabled {
		return Decision{Allowed: true, Remaining: rule.Limit}, nil
	}
	if l.rdb == nil {
		return Decision{}, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", rule.Name, caller)
	cnt, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, err
	}
	if cnt == 1 {
		l.rdb.Expire(ctx, key, rule.Window)
	}

	d := Decision{Allowed: cnt <= int64(rule.Limit), Remaining: rule.Limit - int(cnt)}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !d.Allowed {
		ttl, err := l.rdb.TTL(ctx, key).Result()
		if err != nil || ttl <= 0 {
			ttl = rule.Window
		}
		d.RetryAfter = ttl
	}
	return d, nil
}

// callerID prefers the authenticated username so that users behind one NAT
// do not share a budget.
func callerID(c *fiber.Ctx) string {
	if username, ok := c.Locals("username").(string); ok && username != "" {
		return "user:" + username
	}
	return "ip:" + c.IP()
}

// Handler enforces rule on a route. Register it after RequireAuth so the
// budget is tracked per user.
func (l *Limiter) Handler(rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := l.Allow(c.UserContext(), rule, callerID(c))
		if err != nil {
			if !rule.FailClosed {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limit fail-closed",
				slog.String("rule", rule.Name),
				slog.String("path", c.Path()),
				slog.String("error", err.Error()),
			)
			return models.RespondWithError(c, fiber.StatusServiceUnavailable,
				models.NewStorageUnavailableError(err))
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			return models.RespondWithError(c, fiber.StatusTooManyRequests, &models.AppError{
				Code:    CodeRateLimited,
				Message: fmt.Sprintf("Too many %s requests, try again later", rule.Name),
			})
		}
		return c.Next()
	}
}
