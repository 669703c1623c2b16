package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tern/internal/api"
	"tern/internal/config"
	"tern/internal/db"
	"tern/internal/docs"
	"tern/internal/models"
	"tern/internal/services"
	"tern/internal/tasks"
	"tern/internal/utils"
	"tern/internal/utils/crypto"
	"tern/internal/utils/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// 🚀 Main function
// @title Tern API
// @version 1.0
// @description API server for the Tern email campaign platform
// @host api.tern.sh
// @BasePath /
// @schemes https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

func main() {

	logger := logger.New("TERN")

	// check if .env file exists
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		logger.Info("No .env file found, skipping environment variable loading")
	} else {
		logger.Info("Loading environment variables from .env file")
		if err := godotenv.Load(); err != nil {
			log.Fatalf("Failed to load environment variables: %v", err)
		}
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize credential encryption keys
	if err := crypto.InitializeKeys(cfg.Crypto.Secret); err != nil {
		log.Fatalf("Failed to initialize keys: %v", err)
	}

	// Connect to database
	if err := db.Connect(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		err := db.Close()
		if err != nil {
			log.Fatalf("Failed to close database connection: %v", err)
		}
	}()

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	// Watch database connection pool pressure
	go db.MonitorConnectionPool(serverCtx, 10*time.Minute)

	dbInstance := db.GetDB()

	// Redis backs rate limiting and the daily send counters
	redisClient, err := utils.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}

	// Initialize S3 storage
	storage, err := services.NewStorageService(serverCtx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Register the URL generator so File reads resolve signed URLs
	models.RegisterFileURLGenerator(storage)

	// Task client feeds the background queue
	taskClient := tasks.NewTaskClient(cfg.Redis.Addr, cfg.Redis.Username, cfg.Redis.Password, cfg.Redis.DB)
	defer taskClient.Close()

	// Build the service graph
	plans := services.NewPlanService(dbInstance, redisClient)
	smtp := services.NewSMTPService(dbInstance, cfg)
	campaigns := services.NewCampaignService(dbInstance, plans, taskClient)
	pipeline := services.NewSendPipeline(dbInstance, cfg, smtp, campaigns, plans)
	queue := services.NewQueueService(dbInstance, pipeline, taskClient)
	contacts := services.NewContactService(dbInstance, storage)
	analytics := services.NewAnalyticsService(dbInstance, storage)
	tracking := services.NewTrackingService(dbInstance)
	deliverability := services.NewDeliverabilityService(dbInstance)
	alerts := services.NewAlertService(dbInstance, cfg)
	webhooks := services.NewWebhookService(dbInstance, taskClient)

	// Wire event listeners
	alerts.Wire()
	analytics.Wire()
	webhooks.Wire()
	contacts.WireImportEvents(taskClient)

	zapLogger, err := zap.NewProduction()
	if cfg.Server.Env == "development" {
		zapLogger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize task handlers
	taskHandler := tasks.NewTaskHandler(
		pipeline,
		queue,
		campaigns,
		contacts,
		analytics,
		deliverability,
		webhooks,
		taskClient,
		zapLogger,
	)

	// Initialize task server
	taskServer := tasks.NewServer(
		cfg.Redis.Addr,
		cfg.Redis.Username,
		cfg.Redis.Password,
		cfg.Redis.DB,
		taskHandler,
		zapLogger,
	)

	// Start task server
	go func() {
		if err := taskServer.Start(serverCtx); err != nil {
			logger.Error("task server error: %v", err)
		}
	}()

	// Initialize task scheduler
	taskScheduler := tasks.NewScheduler(
		cfg.Redis.Addr,
		cfg.Redis.Username,
		cfg.Redis.Password,
		cfg.Redis.DB,
		logger,
	)

	// Start task scheduler
	go func() {
		if err := taskScheduler.Start(); err != nil {
			logger.Error("task scheduler error: %v", err)
		}
	}()

	// Initialize API server
	apiServer := api.NewServer(cfg, dbInstance, api.Dependencies{
		Campaigns:      campaigns,
		Pipeline:       pipeline,
		Contacts:       contacts,
		SMTP:           smtp,
		Plans:          plans,
		Tracking:       tracking,
		Analytics:      analytics,
		Deliverability: deliverability,
		Alerts:         alerts,
		Storage:        storage,
		Tasks:          taskClient,
		Redis:          redisClient,
	})

	go func() {
		// Swagger documentation
		docs.SwaggerInfo.Title = "Tern API Documentation"
		docs.SwaggerInfo.Description = "API documentation for the Tern email campaign platform"
		docs.SwaggerInfo.Version = "1.0"
		docs.SwaggerInfo.Host = "api.tern.sh"
		docs.SwaggerInfo.Schemes = []string{"https"}

		logger.Success("API server starting on %s:%d", cfg.Server.Host, cfg.Server.Port)

		if err := apiServer.Start(); err != nil {
			logger.Error("API server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the servers
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Create a deadline for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop task scheduler
	taskScheduler.Stop()

	// Stop task server
	serverCancel()

	// Shutdown API server
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown API server: %v", err)
	}

	logger.Info("Servers shutdown gracefully")
}
