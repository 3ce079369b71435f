package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"booking-search-platform/internal/config"
	"booking-search-platform/internal/database"
	"booking-search-platform/internal/logger"
	"booking-search-platform/internal/queue"
	"booking-search-platform/internal/search"
	"booking-search-platform/internal/telemetry"
	"booking-search-platform/middleware"
	"booking-search-platform/routes"
	"booking-search-platform/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Optional tracing
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("booking-search-platform", cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("Failed to init tracer:", err)
		}
		defer shutdown()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics:", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

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

	sub := conn.Subscribe(func(ev search.ConnectionEvent) {
		switch ev.Kind {
		case search.EventConnectionLost:
			logger.Error("Search store unreachable", "endpoint", ev.Endpoint, "error", ev.Err)
		case search.EventConnected:
			logger.Info("Search store connection restored", "endpoint", ev.Endpoint)
		}
	})
	defer sub.Cancel()

	// Startup-time schema creation fails loudly.
	{
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ConnectTimeoutSec)*time.Second)
		rdb, err := conn.Connect(ctx)
		if err != nil {
			cancel()
			log.Fatal("Failed to connect to search store:", err)
		}
		if err := search.EnsureIndexes(ctx, rdb); err != nil {
			cancel()
			log.Fatal("Failed to create search indexes:", err)
		}
		cancel()
	}

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

	// Rolling-horizon maintenance
	horizon := services.NewHorizonService(repos, search.NewRedisWriter(conn), producer, metrics)
	if err := horizon.Start(); err != nil {
		log.Fatal("Failed to start horizon maintenance:", err)
	}
	defer horizon.Stop()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg))
	if cfg.TracingEnabled {
		router.Use(middleware.TracingMiddleware())
		router.Use(middleware.EnrichTrace())
	}
	router.Use(middleware.MetricsMiddleware(metrics))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := "healthy"
		code := http.StatusOK
		if !conn.IsConnected(ctx) {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "search_store": conn.Info(), "timestamp": time.Now()})
	})

	authMiddleware := middleware.NewAuthMiddleware(cfg)
	routes.SetupAdminRoutes(router, cfg, routes.AdminDeps{
		Conn:     conn,
		Indexer:  indexer,
		Producer: producer,
		Repos:    repos,
	}, authMiddleware)

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
	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
