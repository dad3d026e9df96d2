package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/leadscout/internal/config"
	"github.com/timmy/leadscout/internal/crawler"
	"github.com/timmy/leadscout/internal/crawler/reddit"
	"github.com/timmy/leadscout/internal/logger"
	"github.com/timmy/leadscout/internal/repository"
	"github.com/timmy/leadscout/internal/service"
)

func main() {
	// Initialize logger first (with defaults)
	appLogger := logger.New(&logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "leadscout-crawl",
	})
	logger.SetDefaultLogger(appLogger)

	// Parse command line flags
	market := flag.String("market", "", "Market to crawl (default: all configured markets)")
	limit := flag.Int("limit", 0, "Maximum number of posts per crawl target")
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize database")
	}

	questionRepo := repository.NewQuestionRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	crawlLogRepo := repository.NewCrawlLogRepository(db)

	markets := config.DefaultRegistry(cfg.Markets.MinConfidenceScore)

	crawlers := crawler.NewRegistry()
	crawlers.RegisterSource(reddit.NewAdapter(&reddit.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.Crawler.FetchTimeout,
	}))

	// One-shot crawl: no scoring pipeline attached, questions land as
	// pending and are picked up by the API server's pending sweep.
	dedup := service.NewDeduplicator(questionRepo)
	ingest := service.NewIngestService(questionRepo, commentRepo, dedup, crawlers, nil, appLogger)
	scheduler := service.NewScheduler(markets, ingest, crawlLogRepo, &cfg.Scheduler, &cfg.Crawler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Received shutdown signal, canceling...")
		cancel()
	}()

	names := markets.Names()
	if *market != "" {
		if markets.Get(*market) == nil {
			appLogger.WithField("market", *market).Fatal("Unknown market")
		}
		names = []string{*market}
	}

	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		appLogger.WithField(logger.FieldMarket, name).Info("Crawling market")
		if err := scheduler.Trigger(ctx, name, *limit); err != nil {
			appLogger.WithError(err).WithField(logger.FieldMarket, name).Error("Crawl failed")
		}
	}

	appLogger.Info("Crawl completed")
}
