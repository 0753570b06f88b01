package middleware

import (
	"github.com/labstack/echo/v4"

	"consultchat/internal/infrastructure/ratelimit"
	"consultchat/pkg/errors"
	"consultchat/pkg/logger"
	"consultchat/pkg/response"
)

// RateLimit throttles requests per client IP under the http action policy.
func RateLimit(limiter *ratelimit.RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			allowed, retryAfter := limiter.Allow(ip, ratelimit.ActionHTTP)
			if !allowed {
				logger.Warn("RATE LIMIT: Blocked request from IP %s (retry in %v)", ip, retryAfter)
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded", retryAfter))
			}

			return next(c)
		}
	}
}
