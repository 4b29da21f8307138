package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mynd/internal/config"
	"mynd/internal/database"
	"mynd/internal/extract"
	"mynd/internal/handlers"
	"mynd/internal/index"
	"mynd/internal/jobs"
	"mynd/internal/logging"
	"mynd/internal/middleware"
	"mynd/internal/redact"
	"mynd/internal/services"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Mynd context memory service...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err == nil {
		log.Println("✅ .env file loaded successfully")
	}

	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Data: %s)", cfg.Port, cfg.DataDir)

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		log.Fatalf("❌ Failed to create data directory: %v", err)
	}

	// Record store (fragments, tokens, audit). SQLite in WAL mode.
	db, err := database.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("❌ Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Similarity index lives in its own file so index loss never touches
	// the durable records.
	embedder := index.NewEmbedder(cfg.EmbedderKind, cfg.OllamaURL, cfg.EmbeddingModel, cfg.OpenAIBaseURL, cfg.OpenAIAPIKey)
	idx, err := index.NewVectorIndex(cfg.IndexDBPath, embedder)
	if err != nil {
		log.Fatalf("❌ Failed to open similarity index: %v", err)
	}
	defer idx.Close()
	log.Printf("🧭 Similarity index ready (embedder: %s)", embedder.Name())

	// Redaction filter with optional extra rules, hot-reloaded on change.
	filter, err := redact.NewFilter(cfg.RedactRulesPath)
	if err != nil {
		log.Fatalf("❌ Failed to load redaction rules: %v", err)
	}
	stopWatch := make(chan struct{})
	if cfg.RedactRulesPath != "" {
		go filter.Watch(cfg.RedactRulesPath, stopWatch)
	}

	// Extractor: LLM when an endpoint is configured, heuristic otherwise.
	// Selected once here; nothing downstream probes capabilities at call time.
	var extractor extract.Extractor = extract.Heuristic{}
	if cfg.ExtractorBaseURL != "" {
		extractor = extract.NewLLMExtractor(cfg.ExtractorBaseURL, cfg.ExtractorAPIKey, cfg.ExtractorModel, cfg.ExtractorTimeout)
	}
	log.Printf("🔬 Extractor: %s", extractor.Name())

	// Optional Redis for cross-instance issuance rate limiting.
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, issuance rate limiting disabled: %v", err)
			redisService = nil
		} else {
			defer redisService.Close()
		}
	}

	// Services
	services.InitMetrics()
	fragmentService := services.NewFragmentService(db)
	tokenService := services.NewTokenService(db, cfg.MaxTokenTTL, cfg.DefaultTokenTTL, cfg.MaxContextTokens)
	auditService := services.NewAuditService(db)
	ingestService := services.NewIngestService(filter, extractor, fragmentService, idx)
	contextService := services.NewContextService(fragmentService, idx, cfg.SearchBreadth, cfg.ContextSafetyMargin, cfg.MinConfidence)
	issueLimiter := services.NewIssueLimiter(redisService, 30)

	// Background jobs
	jobScheduler := jobs.NewJobScheduler()
	jobScheduler.Register("token-sweep", jobs.NewTokenSweepJob(tokenService, cfg.TokenSweepEvery))
	jobScheduler.Register("index-repair", jobs.NewIndexRepairJob(ingestService, cfg.IndexRepairEvery))
	if err := jobScheduler.Start(); err != nil {
		log.Printf("⚠️  Failed to start job scheduler: %v", err)
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Mynd v" + version,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		BodyLimit:    5 * 1024 * 1024, // captured pages and documents stay well under this
	})

	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("mynd")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	app.Use(cors.New(cors.Config{
		AllowOrigins: getAllowedOrigins(),
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Handlers
	statusHandler := handlers.NewStatusHandler(fragmentService, tokenService, idx, version)
	tokenHandler := handlers.NewTokenHandler(tokenService, auditService, issueLimiter)
	contextHandler := handlers.NewContextHandler(contextService, fragmentService, auditService, cfg.MaxContextTokens)
	memoryHandler := handlers.NewMemoryHandler(ingestService, auditService)

	// Routes. Token issuance and status are open; everything else sits
	// behind a capability token.
	app.Get("/", statusHandler.Root)
	app.Get("/api/status", statusHandler.Status)
	app.Post("/api/tokens", tokenHandler.Issue)

	auth := middleware.BearerAuth(tokenService, auditService)
	write := middleware.RequireWriteScope(auditService)

	app.Delete("/api/tokens/:id", auth, tokenHandler.Revoke)
	app.Post("/api/context", auth, contextHandler.Assemble)
	app.Get("/api/search/:query", auth, contextHandler.Search)
	app.Get("/api/stats", auth, contextHandler.Stats)
	app.Post("/api/memories", auth, write, memoryHandler.Ingest)
	app.Get("/api/memories", auth, memoryHandler.Recent)
	app.Delete("/api/memories/:id", auth, write, memoryHandler.Delete)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		close(stopWatch)
		jobScheduler.Stop()

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func getAllowedOrigins() string {
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		return origins
	}
	return "http://localhost:5173,http://localhost:3000"
}
