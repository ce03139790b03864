package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"eduquiz-platform/internal/ai"
	"eduquiz-platform/internal/config"
	"eduquiz-platform/internal/database"
	"eduquiz-platform/internal/logger"
	"eduquiz-platform/internal/queue"
	"eduquiz-platform/internal/quiz"
	"eduquiz-platform/internal/rag"
	"eduquiz-platform/internal/telemetry"
	"eduquiz-platform/internal/vectorstore"
	"eduquiz-platform/middleware"
	"eduquiz-platform/routes"
	"eduquiz-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Tracing is best-effort; a missing collector must not block startup
	shutdownTracer, err := telemetry.InitTracer("eduquiz-api", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Connect to Postgres
	db, err := config.ConnectPostgres(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Postgres:", err)
	}

	// Connect to Redis
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Gemini clients; the embedding client shares the generation limiter so
	// both stay inside one request budget
	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	embedder, err := ai.NewEmbeddingClient(context.Background(), cfg.GeminiAPIKey, cfg.EmbeddingsModel, geminiClient.RateLimiter())
	if err != nil {
		log.Fatal("Failed to initialize embedding client:", err)
	}

	// Vector store
	store := vectorstore.NewStore(vectorstore.Config{
		URL:    cfg.QdrantURL,
		APIKey: cfg.QdrantAPIKey,
	})

	// Task queue client
	taskClient := asynq.NewClient(queue.RedisConnOpt(cfg))
	defer taskClient.Close()

	// Domain services
	repo := database.NewQuizRepository(db)
	retriever := rag.NewRetriever(embedder, store)
	quizDeps := routes.QuizDeps{
		Config:    cfg,
		Repo:      repo,
		Retriever: retriever,
		Generator: quiz.NewGenerator(geminiClient),
		Deduper:   quiz.NewDeduplicator(embedder),
		Evaluator: quiz.NewEvaluator(geminiClient, repo),
		Quota:     ai.NewQuotaTracker(rdb, 0),
		Export:    services.NewExportService(repo),
		Metrics:   metrics,
	}

	if err := os.MkdirAll(cfg.FileStorageDir, 0o755); err != nil {
		log.Fatal("Failed to create storage directory:", err)
	}

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("eduquiz-api"))
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RequestIDMiddleware())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Setup routes. Rate limiting runs after auth so callers are keyed by
	// user ID rather than by IP.
	authMiddleware := middleware.NewAuthMiddleware(cfg)
	rateLimiter := middleware.RateLimitMiddleware(cfg, rdb)
	routes.SetupDocumentRoutes(router, cfg, store, taskClient, rdb, authMiddleware, rateLimiter)
	routes.SetupQuizRoutes(router, quizDeps, authMiddleware, rateLimiter)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
