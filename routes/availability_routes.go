package routes

import (
	"github.com/apexedu/tutor_marketplace/handlers"
	"github.com/apexedu/tutor_marketplace/middleware"
	"github.com/gofiber/fiber/v2"
)

func AvailabilityRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// Public calendar reads.
	api.Get("/tutors/:tutorId/schedule", handlers.GetSchedule)
	api.Get("/tutors/:tutorId/slots", handlers.GetSlots)
	api.Get("/tutors/:tutorId/session-types", handlers.GetSessionTypes)

	// Tutor-managed schedule.
	schedule := api.Group("/tutors/:tutorId/schedule", middleware.Protected(), middleware.TutorRequired())
	schedule.Post("", handlers.AddWindow)
	schedule.Patch("/:windowId", handlers.UpdateWindow)
	schedule.Delete("/:windowId", handlers.DeleteWindow)

	exceptions := api.Group("/tutors/:tutorId/exceptions", middleware.Protected(), middleware.TutorRequired())
	exceptions.Get("", handlers.GetExceptions)
	exceptions.Post("", handlers.AddException)
	exceptions.Delete("/:exceptionId", handlers.DeleteException)

	sessionTypes := api.Group("/tutors/:tutorId/session-types", middleware.Protected(), middleware.TutorRequired())
	sessionTypes.Post("", handlers.CreateSessionType)
	sessionTypes.Patch("/:sessionTypeId", handlers.UpdateSessionType)
	sessionTypes.Delete("/:sessionTypeId", handlers.DeleteSessionType)
}
