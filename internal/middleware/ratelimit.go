package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP) for the whole API surface
	GlobalMax        int
	GlobalExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults: 200/min is
// generous for a single dashboard plus a 3-second poller.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		GlobalMax:        200,
		GlobalExpiration: 1 * time.Minute,
	}
}

// GlobalRateLimiter limits all requests per client IP.
func GlobalRateLimiter(cfg *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.GlobalMax,
		Expiration: cfg.GlobalExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded, please slow down",
			})
		},
	})
}
