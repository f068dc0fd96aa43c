package routes

import (
	"github.com/apexedu/tutor_marketplace/cache"
	"github.com/apexedu/tutor_marketplace/handlers"
	"github.com/apexedu/tutor_marketplace/middleware"
	"github.com/gofiber/fiber/v2"
)

func BookingRoutes(app *fiber.App, store cache.Store) {
	api := app.Group("/api/v1")

	booking := api.Group("/bookings", middleware.Protected(), middleware.BookingRateLimit(store))

	// Static paths before the :id wildcard.
	booking.Get("/my-bookings", handlers.GetMyBookings)
	booking.Get("/teacher/my-bookings", middleware.TutorRequired(), handlers.GetTutorBookings)
	booking.Get("/admin/stats", middleware.AdminRequired(), handlers.GetAdminStats)
	booking.Get("/check-availability/:tutorId", handlers.CheckAvailability)

	booking.Get("/:id", handlers.GetBooking)
	booking.Delete("/:id", handlers.CancelBooking)
	booking.Post("/:id/complete", middleware.TutorRequired(), handlers.CompleteBooking)
	booking.Post("/:id/no-show", middleware.TutorRequired(), handlers.NoShowBooking)
}
