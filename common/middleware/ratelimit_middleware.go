package middleware

import (
	"net/http"

	"github.com/aperturelab/proofing/common/ratelimit"
	"github.com/labstack/echo/v4"
)

// IdentRateLimitMiddleware checks per-ident rate limits on the public
// client-facing endpoints. The ident arrives as a path or form parameter;
// requests without one fall through to handler validation.
func IdentRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, limit int64, windowSec int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			collectionID := c.Param("id")
			ident := c.Param("ident")
			if ident == "" {
				ident = c.QueryParam("ident")
			}
			if collectionID == "" || ident == "" {
				return next(c)
			}

			result, err := rateLimiter.CheckIdentLimit(c.Request().Context(), collectionID, ident, limit, windowSec)
			if err != nil {
				// On error, allow request (fail open for availability)
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "rate_limit_exceeded",
					"message": "Too many save attempts. Please wait before trying again.",
					"details": map[string]interface{}{
						"limit":               result.Limit,
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}

// GlobalRateLimitMiddleware checks the global service-wide rate limit
func GlobalRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			result, err := rateLimiter.CheckGlobalLimit(c.Request().Context(), limit)
			if err != nil {
				// On error, allow request (fail open for availability)
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "global_rate_limit_exceeded",
					"message": "Service is experiencing high load. Please try again later.",
					"details": map[string]interface{}{
						"limit":               result.Limit,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
