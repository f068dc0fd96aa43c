package main

import (
	"log"
	"strconv"
	"time"

	"github.com/apexedu/tutor_marketplace/cache"
	config "github.com/apexedu/tutor_marketplace/configs"
	"github.com/apexedu/tutor_marketplace/database"
	"github.com/apexedu/tutor_marketplace/jobs"
	"github.com/apexedu/tutor_marketplace/notifications"
	"github.com/apexedu/tutor_marketplace/payments"
	"github.com/apexedu/tutor_marketplace/routes"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"
)

func newStore() cache.Store {
	addr := config.Config("REDIS_ADDR")
	if addr == "" {
		log.Println("⚠️ REDIS_ADDR not set, using in-process store (single instance only)")
		return cache.NewMemoryStore()
	}

	db, _ := strconv.Atoi(config.Config("REDIS_DB"))
	store, err := cache.NewRedisStore(addr, config.Config("REDIS_PASSWORD"), db)
	if err != nil {
		log.Printf("⚠️ Redis unreachable (%v), falling back to in-process store", err)
		return cache.NewMemoryStore()
	}

	log.Println("✅ Redis store connected")
	return store
}

func main() {
	database.ConnectDB()
	database.Migrate()
	database.SeedAdmin()
	notifications.InitEmailService()
	payments.Init()

	store := newStore()

	c := cron.New()
	c.AddFunc("*/10 * * * *", jobs.ReconcileSettledTransactions)
	c.AddFunc("0 * * * *", jobs.ExpireStalePendingTransactions)
	c.AddFunc("0 9 * * *", jobs.SendSessionReminders)
	go c.Start()
	log.Println("✅ Background jobs scheduled successfully.")

	app := fiber.New(fiber.Config{
		Prefork:       false,
		AppName:       "ApexEdu Tutor Marketplace",
		CaseSensitive: true,
		StrictRouting: true,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization, Retry-After",
		MaxAge:        86400,
	}))

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to ApexEdu Tutor Marketplace API",
		})
	})

	routes.AuthRoutes(app)
	routes.AvailabilityRoutes(app)
	routes.BookingRoutes(app, store)
	routes.PaymentRoutes(app, store)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	log.Println("✅ Server is running on port 8080")
	err := app.Listen(":8080")
	if err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}
