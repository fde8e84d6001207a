package middleware

import (
	"strconv"
	"time"

	"github.com/fadilmartias/aca-radar/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimiter allows max requests per client IP and route within a sliding
// window of length expiration. Zero values fall back to 50 per minute.
func RateLimiter(max int, expiration time.Duration) fiber.Handler {
	if max == 0 {
		max = 50
	}
	if expiration == 0 {
		expiration = 1 * time.Minute
	}
	retryAfter := strconv.Itoa(int(expiration.Round(time.Second).Seconds()))
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|" + c.Method() + " " + c.Route().Path
		},
		LimitReached: func(c *fiber.Ctx) error {
			metrics.RecordRateLimited(c.Method() + " " + c.Route().Path)
			c.Set(fiber.HeaderRetryAfter, retryAfter)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "too many requests, retry later",
			})
		},
		LimiterMiddleware: limiter.SlidingWindow{},
	})
}
