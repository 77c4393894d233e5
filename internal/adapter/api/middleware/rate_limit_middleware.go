package middleware

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/internal/infrastructure/ratelimit"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/errors"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/logger"
	"github.com/KIS-IT-PRODUCTION/AirChat-sub000/pkg/response"
)

// RateLimitMiddleware limits bridge requests per client IP.
func RateLimitMiddleware(rl *ratelimit.RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			allowed, wait := rl.Allow(ip, ratelimit.ActionBridge)
			if !allowed {
				retryAfter := int(math.Ceil(wait.Seconds()))
				logger.Warn("RATE LIMIT: Blocked request from IP %s (retry in %ds)", ip, retryAfter)

				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded"))
			}

			return next(c)
		}
	}
}
