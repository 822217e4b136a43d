package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/rateflow/rateflow-backend/config"
	"github.com/rateflow/rateflow-backend/database"
	"github.com/rateflow/rateflow-backend/handlers"
	"github.com/rateflow/rateflow-backend/jobs"
	"github.com/rateflow/rateflow-backend/services"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load config
	cfg := config.LoadConfig()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// Connect to database
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate("database/schema.sql"); err != nil {
		log.Printf("Migration warning: %v", err)
	}
	if err := database.ValidateSchema(); err != nil {
		log.Printf("Schema validation warning: %v", err)
	}

	// Connect to Redis (rate cache + delivery locks)
	redisClient := database.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	defer redisClient.Close()
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx); err != nil {
			log.Printf("Redis unavailable, continuing without cache: %v", err)
		}
		cancel()
	}

	scoringConfig := config.DefaultScoringConfig()
	routingConfig := config.DefaultRoutingConfig()
	routingConfig.WebhookTimeout = cfg.GetWebhookTimeout()

	// Initialize services
	scoringService := services.NewScoringService(scoringConfig)
	matcherService := services.NewMatcherService()
	leadService := services.NewLeadService(database.DB, scoringService)
	routerService := services.NewRouterService(database.DB, matcherService, leadService, routingConfig)
	deliveryService := services.NewDeliveryService(database.DB, redisClient, leadService, routingConfig)
	rateService := services.NewRateService(redisClient, cfg)
	calculatorService := services.NewCalculatorService()
	emailService := services.NewEmailService(context.Background(), cfg)

	// Initialize jobs
	sweepJob := jobs.NewOutboxSweepJob(deliveryService)
	counterJob := jobs.NewCounterResetJob(database.DB)
	rateJob := jobs.NewRateUpdateJob(rateService)

	sweepJob.Start()
	counterJob.Start()
	rateJob.Start()

	// Initialize handlers
	leadHandler := handlers.NewLeadHandler(leadService, routerService, deliveryService, emailService, routingConfig)
	rateHandler := handlers.NewRateHandler(rateService)
	calculatorHandler := handlers.NewCalculatorHandler(calculatorService)
	adminHandler := handlers.NewAdminHandler(database.DB, deliveryService)

	// Setup Fiber
	app := fiber.New(fiber.Config{
		AppName: "rateflow-backend",
	})

	// Middleware
	app.Use(logger.New())
	app.Use(cors.New())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		if err := database.HealthCheck(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	// Routes
	api := app.Group("/api/v1")

	// Lead Routes
	api.Post("/leads", leadHandler.SubmitLead)
	api.Get("/leads", leadHandler.GetLeads)

	// Rate Routes
	api.Get("/rates", rateHandler.GetCurrentRates)
	api.Get("/rates/history", rateHandler.GetRateHistory)

	// Calculator Routes
	api.Post("/calculators/amortization", calculatorHandler.Amortize)
	api.Post("/calculators/arm-comparison", calculatorHandler.CompareARM)

	// Admin Routes
	admin := api.Group("/admin", handlers.RequireAdminToken(cfg.AdminToken))
	admin.Post("/lenders", adminHandler.CreateLender)
	admin.Get("/lenders", adminHandler.ListLenders)
	admin.Patch("/lenders/:id", adminHandler.UpdateLender)
	admin.Post("/lenders/reset-counters", adminHandler.ResetCounters)
	admin.Get("/outbox", adminHandler.ListOutbox)
	admin.Post("/outbox/sweep", adminHandler.SweepOutbox)

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
