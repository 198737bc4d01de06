package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftline/driftline/internal/api"
	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/database"
	"github.com/driftline/driftline/internal/detection"
	"github.com/driftline/driftline/internal/extraction"
	"github.com/driftline/driftline/internal/inference"
	"github.com/driftline/driftline/internal/ingest"
	"github.com/driftline/driftline/internal/logging"
	"github.com/driftline/driftline/internal/metrics"
	"github.com/driftline/driftline/internal/scheduler"
	"github.com/driftline/driftline/internal/server"
	_ "github.com/lib/pq"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting driftline")

	ctx := context.Background()

	db, err := database.Connect(ctx, database.Config{
		URL:             cfg.Database.URL,
		MaxConnections:  cfg.Database.MaxConnections,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  10 * time.Second,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	// Run pending migrations (non-fatal to allow app to start even if migrations fail)
	if err := database.RunMigrations(db, "./migrations", logger); err != nil {
		logger.Warn("failed to run migrations, continuing anyway", "error", err)
	}

	// Create repositories
	projectRepo := database.NewProjectRepository(db)
	sourceRepo := database.NewSourceRepository(db)
	ingestionRepo := database.NewIngestionRepository(db)
	signalRepo := database.NewSignalRepository(db)
	executionLogRepo := database.NewExecutionLogRepository(db)
	inferenceLogRepo := database.NewInferenceLogRepository(db)

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	// Optional Redis hash cache. The database uniqueness constraint is the
	// authority either way, so an unreachable Redis only disables the
	// pre-filter.
	var hashCache *ingest.HashCache
	if cfg.Redis.URL != "" {
		hashCache, err = ingest.NewHashCache(cfg.Redis.URL, cfg.Redis.TTL, logger)
		if err != nil {
			logger.Warn("hash cache unavailable, relying on database dedup only", "error", err)
		} else {
			defer hashCache.Close()
			logger.Info("hash cache enabled")
		}
	}

	// Extraction clients
	retryPolicy := extraction.DefaultRetryPolicy()
	platformClient := extraction.NewPlatformClient(
		cfg.Extraction.PlatformServiceURL,
		cfg.Extraction.PlatformAPIKey,
		cfg.Extraction.RequestTimeout,
		logger,
	)
	primaryClient := extraction.NewPrimaryClient(
		cfg.Extraction.PrimaryServiceURL,
		cfg.Extraction.PrimaryAPIKey,
		cfg.Extraction.RequestTimeout,
		logger,
	)
	secondaryClient := extraction.NewSecondaryClient(
		cfg.Extraction.SecondaryServiceURL,
		cfg.Extraction.SecondaryAPIKey,
		cfg.Extraction.RequestTimeout,
		logger,
	)
	localExtractor := extraction.NewLocalExtractor(cfg.Extraction.RequestTimeout, logger)

	articleChain := extraction.NewArticleChain(primaryClient, secondaryClient, localExtractor, retryPolicy, logger, collector)

	// Detection stack
	inferenceLogger := inference.NewLogger(inferenceLogRepo, logger)
	detector := detection.NewOpenAIDetector(cfg.Detector, inferenceLogger, logger)
	detectionService := detection.NewService(detector, signalRepo, ingestionRepo, sourceRepo, collector, logger)

	orchestrator := ingest.NewOrchestrator(ingest.OrchestratorParams{
		Sources:    sourceRepo,
		Ingestions: ingestionRepo,
		Runs:       executionLogRepo,
		Strategies: []extraction.Strategy{
			extraction.NewSocialStrategy(platformClient, retryPolicy, logger),
			extraction.NewForumStrategy(platformClient, retryPolicy, logger),
		},
		Articles: articleChain,
		Analyzer: detectionService,
		Cache:    hashCache,
		Observer: collector,
		Logger:   logger,
	})

	refreshScheduler := scheduler.NewRefreshScheduler(
		projectRepo,
		orchestrator,
		detectionService,
		cfg.Scheduler.CheckInterval,
		cfg.Scheduler.LookbackHours,
		logger,
	)
	healthChecker := scheduler.NewHealthChecker(projectRepo, executionLogRepo, ingestionRepo, cfg.Scheduler.StuckThreshold)

	if cfg.Scheduler.Enabled {
		go refreshScheduler.Start(ctx)
		logger.Info("refresh scheduler started", "check_interval", cfg.Scheduler.CheckInterval)
	} else {
		logger.Info("refresh scheduler disabled")
	}

	handler := api.NewHandler(
		orchestrator,
		refreshScheduler,
		detectionService,
		healthChecker,
		db,
		cfg.Scheduler.LookbackHours,
		logger,
	)
	router := api.NewRouter(handler, collector)

	srv := server.New(cfg.Server, logger, router)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("received shutdown signal", "signal", sig.String())
	}

	if cfg.Scheduler.Enabled {
		refreshScheduler.Stop()
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
