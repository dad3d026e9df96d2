package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/leadscout/internal/agent"
	"github.com/timmy/leadscout/internal/api"
	"github.com/timmy/leadscout/internal/config"
	"github.com/timmy/leadscout/internal/crawler"
	"github.com/timmy/leadscout/internal/crawler/reddit"
	"github.com/timmy/leadscout/internal/logger"
	"github.com/timmy/leadscout/internal/repository"
	"github.com/timmy/leadscout/internal/service"
)

func main() {
	// Initialize logger from environment (supports rotation and file output)
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	// Initialize repositories
	questionRepo := repository.NewQuestionRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	responseRepo := repository.NewResponseRepository(db)
	crawlLogRepo := repository.NewCrawlLogRepository(db)

	// Market registry
	markets := config.DefaultRegistry(cfg.Markets.MinConfidenceScore)

	// Platform adapters
	crawlers := crawler.NewRegistry()
	redditAdapter := reddit.NewAdapter(&reddit.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		AccessToken: os.Getenv("REDDIT_ACCESS_TOKEN"),
		Timeout:     cfg.Crawler.FetchTimeout,
	})
	crawlers.RegisterSource(redditAdapter)
	crawlers.RegisterSink(redditAdapter)

	// Agent API client
	agentClient := agent.NewClient(&agent.Config{
		BaseURL:         cfg.Agent.BaseURL,
		APIKey:          cfg.Agent.APIKey,
		AnalyzeTimeout:  cfg.Agent.AnalyzeTimeout,
		GenerateTimeout: cfg.Agent.GenerateTimeout,
	})

	// Services
	pipeline := service.NewScoringPipeline(questionRepo, responseRepo, agentClient, markets, &cfg.Pipeline)
	dedup := service.NewDeduplicator(questionRepo)
	ingest := service.NewIngestService(questionRepo, commentRepo, dedup, crawlers, pipeline, appLogger)
	scheduler := service.NewScheduler(markets, ingest, crawlLogRepo, &cfg.Scheduler, &cfg.Crawler)
	posting := service.NewPostingService(questionRepo, responseRepo, crawlers, &cfg.Posting)
	pipeline.AttachPoster(posting)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the scoring workers and recover work stranded by a previous run
	pipeline.Start(ctx)
	if n, err := pipeline.RequeuePending(ctx, cfg.Pipeline.QueueSize); err != nil {
		appLogger.WithError(err).Error("Failed to requeue pending questions")
	} else if n > 0 {
		appLogger.WithField("count", n).Info("Recovered pending questions")
	}

	// Start the crawl scheduler
	if cfg.Scheduler.Enabled {
		go scheduler.Start(ctx)
	} else {
		appLogger.Info("Scheduler disabled, crawls run on manual trigger only")
	}

	// Setup router
	router := api.SetupRouter(&api.Dependencies{
		DB:        db,
		Questions: questionRepo,
		Comments:  commentRepo,
		Responses: responseRepo,
		CrawlLogs: crawlLogRepo,
		Markets:   markets,
		Scheduler: scheduler,
		Posting:   posting,
		Agent:     agentClient,
		Logger:    appLogger,
	}, &cfg.Server)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Stop background work before closing the listener
	cancel()
	pipeline.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Fatal("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
