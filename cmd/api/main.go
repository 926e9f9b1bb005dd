package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/marketscout/backend/internal/analytics"
	"github.com/marketscout/backend/internal/api/handlers"
	"github.com/marketscout/backend/internal/cache/redis"
	"github.com/marketscout/backend/internal/dossier"
	"github.com/marketscout/backend/internal/ingestion"
	"github.com/marketscout/backend/internal/metrics"
	"github.com/marketscout/backend/internal/middleware/ratelimit"
	"github.com/marketscout/backend/internal/middleware/security"
	"github.com/marketscout/backend/internal/middleware/validation"
	"github.com/marketscout/backend/internal/notify"
	"github.com/marketscout/backend/internal/scan"
	"github.com/marketscout/backend/internal/scheduler"
	"github.com/marketscout/backend/internal/search/xref"
	"github.com/marketscout/backend/internal/storage/sqlite"
	"github.com/marketscout/backend/internal/verifier"
	"github.com/marketscout/backend/pkg/config"
	appLogger "github.com/marketscout/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting MarketScout API Server")

	metrics.Init()

	store, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer store.Close()

	err = store.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, caching disabled", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	scanClient := scan.NewClient(
		cfg.Scan.BaseURL,
		cfg.Scan.APIKey,
		time.Duration(cfg.Scan.TimeoutSec)*time.Second,
		cfg.Scan.RequestsPerMin,
	)
	xrefClient := xref.NewClient(
		cfg.XRef.BaseURL,
		cfg.XRef.APIKey,
		cfg.XRef.MaxResults,
		time.Duration(cfg.XRef.TimeoutSec)*time.Second,
		appLogger.Log,
	)

	scorer := verifier.New(verifier.Weights{
		Base:               cfg.Scoring.BaseConfidence,
		Completeness:       cfg.Scoring.CompletenessWeight,
		Contact:            cfg.Scoring.ContactWeight,
		CrossRef:           cfg.Scoring.CrossRefWeight,
		RedFlagPenalty:     cfg.Scoring.RedFlagPenalty,
		CrossRefSaturation: cfg.Scoring.CrossRefSaturation,
	})

	ingestor := ingestion.NewService(store, xrefClient, scorer, ingestion.Config{
		HighStrengthCutoff: cfg.Scoring.HighStrengthCutoff,
		MedStrengthCutoff:  cfg.Scoring.MedStrengthCutoff,
		FreshnessDecayDays: cfg.Scoring.FreshnessDecayDays,
		Concurrency:        cfg.Scheduler.IngestConcurrency,
	})

	streamHandler := handlers.NewStreamHandler()
	ingestor.SetAlerter(streamHandler)

	synthesizer := dossier.NewSynthesizer(store, dossier.DefaultRules, cfg.Analytics.DossierSignalCap)

	var analyticsCache analytics.Cache
	var notifyCache notify.Cache
	if cacheClient != nil {
		analyticsCache = cacheClient
		notifyCache = cacheClient
	}

	engine := analytics.NewEngine(store, analyticsCache,
		cfg.Analytics.OpportunityLimit,
		time.Duration(cfg.Digest.CacheTTLSec)*time.Second,
	)

	schedulerSvc := scheduler.NewService(store, scheduler.Config{
		HealthWindow:      cfg.Scheduler.HealthWindow,
		DegradedErrorRate: cfg.Scheduler.DegradedErrorRate,
	})

	runner := scheduler.NewRunner(schedulerSvc, store, scanClient, ingestor, scheduler.RunnerConfig{
		Workers:      cfg.Scheduler.Workers,
		PollInterval: time.Duration(cfg.Scheduler.PollIntervalSec) * time.Second,
		RunTimeout:   time.Duration(cfg.Scheduler.RunTimeoutSec) * time.Second,
	})

	notifySvc := notify.NewService(store, notifyCache, notify.Config{
		HighlightCount: cfg.Digest.HighlightCount,
		CacheTTL:       time.Duration(cfg.Digest.CacheTTLSec) * time.Second,
		AlertRecipient: cfg.Digest.AlertRecipient,
	})
	ingestor.SetNotifier(notifySvc)

	runnerCtx, stopRunner := context.WithCancel(context.Background())
	defer stopRunner()
	go func() {
		if err := runner.Start(runnerCtx); err != nil && runnerCtx.Err() == nil {
			appLogger.Error("Scan runner stopped", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.Log})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Tenant-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))
	app.Use(limiter.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})
	app.Get("/metrics", metrics.MetricsHandler())

	app.Use(validation.Middleware(validation.Config{Logger: appLogger.Log}))

	signalsHandler := handlers.NewSignalsHandler(ingestor, runner, store)
	dossiersHandler := handlers.NewDossiersHandler(synthesizer, store)
	analyticsHandler := handlers.NewAnalyticsHandler(engine)
	schedulerHandler := handlers.NewSchedulerHandler(schedulerSvc)
	notificationsHandler := handlers.NewNotificationsHandler(notifySvc)

	api := app.Group("/api/v1")

	api.Post("/signals", signalsHandler.Ingest)
	api.Get("/signals", signalsHandler.List)
	api.Get("/signals/:id", signalsHandler.Get)
	api.Post("/scans", signalsHandler.ManualScan)

	api.Post("/dossiers", dossiersHandler.Synthesize)
	api.Get("/dossiers/:id", dossiersHandler.Get)

	api.Get("/analytics/trend", analyticsHandler.Trend)
	api.Get("/analytics/overview", analyticsHandler.Overview)
	api.Get("/analytics/opportunities", analyticsHandler.Opportunities)
	api.Post("/analytics/snapshots", analyticsHandler.Snapshot)

	api.Post("/tasks", schedulerHandler.CreateTask)
	api.Get("/tasks", schedulerHandler.ListTasks)
	api.Get("/tasks/:id", schedulerHandler.GetTask)
	api.Post("/tasks/:id/trigger", schedulerHandler.Trigger)
	api.Post("/tasks/:id/outcome", schedulerHandler.RecordOutcome)
	api.Post("/tasks/:id/pause", schedulerHandler.Pause)
	api.Post("/tasks/:id/resume", schedulerHandler.Resume)
	api.Delete("/tasks/:id", schedulerHandler.DeleteTask)
	api.Get("/scheduler/health", schedulerHandler.Health)

	api.Post("/notifications", notificationsHandler.Create)
	api.Get("/notifications/digest", notificationsHandler.Digest)
	api.Post("/notifications/:id/read", notificationsHandler.MarkRead)
	api.Post("/notifications/read-all", notificationsHandler.MarkAllRead)

	api.Use("/stream", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/stream", websocket.New(streamHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	stopRunner()
	app.Shutdown()
	appLogger.Info("Server stopped")
}
