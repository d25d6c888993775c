package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/phdtrack/phdtrack-api/internal/config"
	"github.com/phdtrack/phdtrack-api/internal/database"
	"github.com/phdtrack/phdtrack-api/internal/handler"
	"github.com/phdtrack/phdtrack-api/internal/middleware"
	"github.com/phdtrack/phdtrack-api/internal/observability"
	"github.com/phdtrack/phdtrack-api/internal/router"
	"github.com/phdtrack/phdtrack-api/internal/service"
	"github.com/phdtrack/phdtrack-api/internal/store"
	"github.com/phdtrack/phdtrack-api/pkg/backup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	observability.RegisterMetrics()

	datasetStore, err := store.NewJSONStore(cfg.DatasetPath, logger)
	if err != nil {
		log.Fatalf("failed to initialise dataset store: %v", err)
	}

	// Refuse to start on an unreadable dataset rather than serve partial data.
	if _, err := datasetStore.Load(context.Background()); err != nil {
		log.Fatalf("failed to load dataset %s: %v", cfg.DatasetPath, err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured, dashboard caching disabled")
	}

	var fileBackup service.FileBackup
	if cfg.CloudinaryCloudName != "" {
		uploader, err := backup.New(backup.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		fileBackup = uploader
	} else {
		logger.Warn().Msg("cloudinary not configured, cloud backups disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	progressService := service.NewProgressService(datasetStore, cfg.UploadDir, logger)
	authService := service.NewAuthService(datasetStore, cfg.SupervisorID, cfg.SupervisorPassword, cfg.JWTSecret, cfg.TokenTTL, logger)
	accountService := service.NewAccountService(progressService, validate, logger)
	dashboardService := service.NewDashboardService(progressService, redisClient, cfg.DashboardCacheTTL, logger)
	uploadService := service.NewUploadService(progressService, fileBackup, cfg.UploadDir, cfg.UploadMaxMB, logger)
	exportService := service.NewExportService(progressService, fileBackup, logger)

	authHandler := handler.NewAuthHandler(authService, validate, logger)
	studentHandler := handler.NewStudentHandler(accountService, progressService, logger)
	progressHandler := handler.NewProgressHandler(progressService, dashboardService, validate, logger)
	uploadHandler := handler.NewUploadHandler(uploadService, logger)
	exportHandler := handler.NewExportHandler(exportService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:     authHandler,
		StudentHandler:  studentHandler,
		ProgressHandler: progressHandler,
		UploadHandler:   uploadHandler,
		ExportHandler:   exportHandler,
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
		LoginRateLimit:  middleware.RateLimit("login", 10, time.Minute),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
