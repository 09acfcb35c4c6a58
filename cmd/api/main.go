package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	pkgvalidator "github.com/dealsense-team/dealsense/pkg/validator"

	"github.com/dealsense-team/dealsense/internal/adapter/handler"
	"github.com/dealsense-team/dealsense/internal/adapter/repository"
	"github.com/dealsense-team/dealsense/internal/infrastructure/database"
	"github.com/dealsense-team/dealsense/internal/infrastructure/queue"
	"github.com/dealsense-team/dealsense/internal/usecase/pipeline"
	pkgai "github.com/dealsense-team/dealsense/pkg/ai"
	"github.com/dealsense-team/dealsense/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Echo instance
	e := echo.New()

	// Register validator for request validation
	e.Validator = pkgvalidator.New()

	// Configure Echo
	e.HideBanner = true
	e.HidePort = false

	// Custom logger format
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339} | ${status} | ${method} ${uri} | ${latency_human}\n",
	}))

	// Recover from panics
	e.Use(middleware.Recover())

	// CORS middleware
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	// Initialize dependencies
	log.Println("🔧 Initializing dependencies...")

	// Initialize Database
	log.Println("📦 Connecting to database...")
	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.CloseDB(db)

	// Run AutoMigrate only when explicitly enabled in config.
	// Production deployments should manage schema via sql-migrate.
	if cfg.Database.AutoMigrate {
		if cfg.Server.Environment == "production" {
			log.Fatalf("AutoMigrate is enabled in production. Disable DB_AUTO_MIGRATE or manage schema with sql-migrate.")
		}
		log.Println("🔄 Running migrations (development only) ...")
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	} else {
		log.Println("🔄 Skipping migrations; use sql-migrate for schema migrations in CI/CD/production")
	}

	// Initialize Redis and the job queue
	log.Println("📦 Connecting to Redis...")
	redisClient, err := queue.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	jobQueue := queue.NewRedisQueue(redisClient, cfg.Pipeline.QueueNamespace)

	// Requeue deliveries stranded by a previous crash before workers start
	for _, event := range []string{pipeline.EventTranscriptParse, pipeline.EventTranscriptCompleted} {
		moved, err := jobQueue.RequeueOrphans(context.Background(), event)
		if err != nil {
			log.Fatalf("Failed to requeue orphaned %s deliveries: %v", event, err)
		}
		if moved > 0 {
			log.Printf("♻️  Requeued %d orphaned %s deliveries", moved, event)
		}
	}

	// Initialize repositories
	log.Println("⚙️  Initializing repositories...")
	recordRepo := repository.NewTranscriptRecordRepository(db)

	// Initialize model clients
	log.Println("🤖 Initializing model clients...")
	extractionClient := pkgai.NewExtractionClient(&cfg.Extraction)
	riskClient := pkgai.NewRiskClient(&cfg.Risk)

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize pipeline service
	log.Println("⚗️  Initializing pipeline service...")
	pipelineService := pipeline.NewService(recordRepo, jobQueue, extractionClient, riskClient, cfg, logger)

	// Start the worker pool
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	if err := pipelineService.StartWorkerPool(workerCtx, cfg.Pipeline.WorkerCount); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}

	// Initialize handlers
	log.Println("🚀 Initializing handlers...")
	transcriptController := handler.NewTranscriptController(pipelineService, logger)
	pipelineController := handler.NewPipelineController(pipelineService, logger)

	// Setup router with handlers
	log.Println("🛣️  Setting up routes...")
	router := handler.NewRouter(cfg, transcriptController, pipelineController)
	router.Setup(e)

	// Start server
	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		log.Printf("🚀 Starting server on %s", addr)
		log.Printf("📝 Environment: %s", cfg.Server.Environment)
		log.Printf("🔗 Health check: http://%s/health", addr)

		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	// Stop workers after the server so in-flight requests can still dispatch
	if err := pipelineService.StopWorkerPool(); err != nil {
		log.Printf("⚠️  Worker pool stop: %v", err)
	}
	workerCancel()

	log.Println("✅ Server stopped gracefully")
}
