package main

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"

	"eduquiz-platform/internal/ai"
	"eduquiz-platform/internal/config"
	"eduquiz-platform/internal/logger"
	"eduquiz-platform/internal/queue"
	"eduquiz-platform/internal/rag"
	"eduquiz-platform/internal/telemetry"
	"eduquiz-platform/internal/vectorstore"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer("eduquiz-worker", "")
	if err != nil {
		logger.Warn("Tracing disabled", "error", err)
	} else {
		defer shutdownTracer()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	// Connect to Redis
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Gemini clients
	geminiClient, err := ai.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTier)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	embedder, err := ai.NewEmbeddingClient(context.Background(), cfg.GeminiAPIKey, cfg.EmbeddingsModel, geminiClient.RateLimiter())
	if err != nil {
		log.Fatal("Failed to initialize embedding client:", err)
	}

	// Vector store and ingestion pipeline
	store := vectorstore.NewStore(vectorstore.Config{
		URL:    cfg.QdrantURL,
		APIKey: cfg.QdrantAPIKey,
	})
	pipeline := rag.NewPipeline(embedder, store, cfg.MaxChunkSize, cfg.ChunkOverlap)

	// Create task processor
	processor := queue.NewTaskProcessor(pipeline, rdb, metrics)

	// Periodic cleanup of ingestion statuses abandoned by crashed tasks
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.Every(15).Minutes().Do(func() {
		processor.ReapStaleStatuses(context.Background())
	})
	scheduler.StartAsync()
	defer scheduler.Stop()

	// Create Asynq server
	server := asynq.NewServer(
		queue.RedisConnOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.ProcessDocument)
	mux.HandleFunc(queue.TaskIngestWebsite, processor.ProcessWebsite)

	logger.Info("Starting worker", "concurrency", 10, "redis", cfg.RedisURL)

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
