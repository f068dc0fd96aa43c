package routes

import (
	"github.com/apexedu/tutor_marketplace/cache"
	"github.com/apexedu/tutor_marketplace/handlers"
	"github.com/apexedu/tutor_marketplace/middleware"
	"github.com/gofiber/fiber/v2"
)

func PaymentRoutes(app *fiber.App, store cache.Store) {
	api := app.Group("/api/v1")

	// Webhook is authenticated by signature, not JWT, and is never
	// idempotency-gated: settlement itself tolerates replays.
	api.Post("/payments/webhook", handlers.HandleWebhook)

	payment := api.Group("/payments",
		middleware.Protected(),
		middleware.PaymentRateLimit(store),
		middleware.Idempotency(store),
	)
	payment.Post("/create-payment-intent", handlers.CreatePaymentIntent)
	payment.Post("/refund", handlers.ProcessRefund)
}
