package middleware

import (
	"encoding/json"
	"time"

	"github.com/apexedu/tutor_marketplace/cache"
	"github.com/gofiber/fiber/v2"
)

const idempotencyTTL = 24 * time.Hour

type idempotentResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Idempotency guards state-changing monetary endpoints. The caller must send
// an Idempotency-Key header; a replayed key returns the stored response
// verbatim instead of performing the operation twice. Claiming the key is a
// single SetNX, so concurrent replays cannot both execute.
func Idempotency(store cache.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get("Idempotency-Key")
		if key == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Idempotency key required",
				"message": "Please include an Idempotency-Key header for this operation",
			})
		}

		cacheKey := "idem:" + key

		claimed, err := store.SetNX(c.Context(), cacheKey, "", idempotencyTTL)
		if err != nil {
			// Without the store we cannot guarantee exactly-once; refuse
			// rather than risk a double charge.
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "Service unavailable",
				"message": "Idempotency store is unreachable, please retry later",
			})
		}

		if !claimed {
			value, ok, err := store.Get(c.Context(), cacheKey)
			if err == nil && ok && value != "" {
				var stored idempotentResponse
				if json.Unmarshal([]byte(value), &stored) == nil {
					c.Set("Content-Type", fiber.MIMEApplicationJSON)
					return c.Status(stored.Status).Send(stored.Body)
				}
			}
			// The original request is still in flight.
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   "Request in progress",
				"message": "A request with this Idempotency-Key is already being processed",
			})
		}

		if err := c.Next(); err != nil {
			store.Delete(c.Context(), cacheKey)
			return err
		}

		status := c.Response().StatusCode()
		if status >= 500 {
			// Never replay a server failure; let the client retry for real.
			store.Delete(c.Context(), cacheKey)
			return nil
		}

		stored, marshalErr := json.Marshal(idempotentResponse{
			Status: status,
			Body:   json.RawMessage(c.Response().Body()),
		})
		if marshalErr != nil {
			store.Delete(c.Context(), cacheKey)
			return nil
		}
		store.Set(c.Context(), cacheKey, string(stored), idempotencyTTL)
		return nil
	}
}
