package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"echovault/internal/config"
	"echovault/internal/database"
	"echovault/internal/handlers"
	"echovault/internal/logging"
	"echovault/internal/middleware"
	"echovault/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting EchoVault server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	// Load configuration; credential presence and shape are validated here,
	// once, never rediscovered per request.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s)", cfg.Port)

	// Initialize MongoDB
	mongoDB, err := database.NewMongoDB(cfg.MongoURI)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer mongoDB.Close(context.Background())

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := mongoDB.Initialize(initCtx); err != nil {
		log.Fatalf("❌ Failed to initialize MongoDB: %v", err)
	}

	// OpenAI client shared by all three delegate services
	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey)}
	if cfg.OpenAIBaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	openaiClient := openai.NewClient(clientOpts...)

	// Initialize services
	metrics := services.InitMetrics()
	extractionService := services.NewExtractionService(&openaiClient, metrics)
	embeddingService := services.NewEmbeddingService(&openaiClient, metrics)
	synthesisService := services.NewSynthesisService(&openaiClient, metrics)
	memoryStore := services.NewMemoryStorageService(mongoDB)
	actionStore := services.NewActionStorageService(mongoDB)
	memoryService := services.NewMemoryService(extractionService, embeddingService, synthesisService, memoryStore, metrics)
	log.Println("✅ Services initialized")

	// Initialize handlers
	memoryHandler := handlers.NewMemoryHandler(memoryService, memoryStore)
	actionHandler := handlers.NewActionHandler(actionStore)
	healthHandler := handlers.NewHealthHandler(mongoDB)

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName:      "EchoVault",
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	prometheus := fiberprometheus.New("echovault")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))

	app.Use(middleware.GlobalRateLimiter(middleware.DefaultRateLimitConfig()))

	// Routes
	app.Get("/health", healthHandler.Handle)
	app.Post("/add-memory", memoryHandler.AddMemory)
	app.Post("/search", memoryHandler.Search)
	app.Get("/tasks", memoryHandler.ListTasks)
	app.Get("/memories", memoryHandler.ListMemories)
	app.Post("/memories/since", memoryHandler.ListSince)
	app.Post("/agent-actions/log", actionHandler.LogAction)
	app.Get("/agent-actions", actionHandler.ListActions)

	log.Printf("✅ Server ready on port %s", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}
