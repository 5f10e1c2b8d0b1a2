package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shuttleops/movesync/common/logger"
	"github.com/shuttleops/movesync/common/ratelimit"
)

// Limiter counts one request for an actor under a policy
type Limiter interface {
	Check(ctx context.Context, actor string, p ratelimit.Policy) (*ratelimit.Result, error)
}

// RateLimit applies a per-actor limit. It must run after ExtractActor.
// Anonymous requests are not counted. Limiter errors let the request through.
func RateLimit(limiter Limiter, p ratelimit.Policy, log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil {
				return next(c)
			}

			actor := GetActor(c)
			if actor.Email == "" {
				return next(c)
			}

			result, err := limiter.Check(c.Request().Context(), actor.Email, p)
			if err != nil {
				log.Warn("rate limit check failed, allowing request",
					"policy", p.Name,
					"actor", actor.Email,
					"error", err)
				return next(c)
			}

			if !result.Allowed {
				c.Response().Header().Set("Retry-After", strconv.FormatInt(result.RetryAfterSeconds, 10))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":  "Too many requests, please wait before trying again",
					"policy": p.Name,
					"details": map[string]interface{}{
						"actor":               actor.Email,
						"limit":               result.Limit,
						"window_seconds":      p.WindowSeconds,
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
