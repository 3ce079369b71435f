package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"booking-search-platform/internal/config"
	"booking-search-platform/internal/database"
	"booking-search-platform/internal/logger"
	"booking-search-platform/internal/queue"
	"booking-search-platform/internal/search"
	"booking-search-platform/internal/telemetry"
	"booking-search-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(context.Background())

	repos := database.NewRepositories(mongoClient, cfg.DBName)

	// Search store connection manager
	redisOpts, err := config.RedisOptions(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}
	conn := search.NewManager(redisOpts, search.Policy{
		LockWait:       time.Duration(cfg.ConnectLockWaitSec) * time.Second,
		ConnectTimeout: time.Duration(cfg.ConnectTimeoutSec) * time.Second,
		MaxRetries:     cfg.ConnectMaxRetries,
	})
	defer conn.Close()

	producer := queue.NewClient(config.AsynqRedisOpt(cfg))
	defer producer.Close()

	indexer := search.NewIndexer(repos, search.NewRedisWriter(conn), metrics, search.IndexerOptions{
		MaxAttempts: cfg.IndexMaxRetries,
		HorizonDays: cfg.HorizonDays,
		FanoutRate:  cfg.FanoutRatePerSec,
	})
	indexer.SetRequeuer(producer)
	if cfg.SMTPHost != "" {
		indexer.SetStaleAlerter(services.NewStaleIndexAlerter(services.NewSMTPEmailSender(cfg)))
	}

	// Create Asynq server
	server := asynq.NewServer(
		config.AsynqRedisOpt(cfg),
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				"critical": 6, // 60% of workers
				"default":  3, // 30% of workers
				"low":      1, // 10% of workers
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	// Create task processor
	processor := queue.NewTaskProcessor(indexer)

	// Create mux and register handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskReindexUnit, processor.ProcessReindexUnit)
	mux.HandleFunc(queue.TaskReindexField, processor.ProcessReindexField)
	mux.HandleFunc(queue.TaskRemoveUnit, processor.ProcessRemoveUnit)

	logger.Info("Starting indexing worker",
		"concurrency", cfg.WorkerConcurrency,
		"queues", "critical(6), default(3), low(1)")

	// Start the server
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
