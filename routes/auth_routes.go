package routes

import (
	"github.com/apexedu/tutor_marketplace/handlers"
	"github.com/apexedu/tutor_marketplace/middleware"
	"github.com/gofiber/fiber/v2"
)

func AuthRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	auth := api.Group("/auth")
	auth.Post("/register", handlers.RegisterUser)
	auth.Post("/login", handlers.LoginUser)
	auth.Post("/children", middleware.Protected(), handlers.AddChildAccount)
}
