package middleware

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/apexedu/tutor_marketplace/cache"
	"github.com/gofiber/fiber/v2"
)

// RateLimit counts requests per client IP in fixed windows kept in the
// shared store. A broken store lets traffic through rather than taking the
// API down with it.
func RateLimit(store cache.Store, name string, maxRequests int64, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("rate:%s:%s", name, c.IP())

		count, remaining, err := store.Incr(c.Context(), key, window)
		if err != nil {
			log.Printf("⚠️ Rate limit store unavailable, allowing request: %v", err)
			return c.Next()
		}

		if count > maxRequests {
			retryAfter := int(math.Ceil(remaining.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":      "Too many requests",
				"message":    fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds.", retryAfter),
				"retryAfter": retryAfter,
			})
		}

		return c.Next()
	}
}

// Preset windows for the three traffic classes.
func PaymentRateLimit(store cache.Store) fiber.Handler {
	return RateLimit(store, "payment", 10, time.Minute)
}

func BookingRateLimit(store cache.Store) fiber.Handler {
	return RateLimit(store, "booking", 20, time.Minute)
}

func APIRateLimit(store cache.Store) fiber.Handler {
	return RateLimit(store, "api", 100, time.Minute)
}
