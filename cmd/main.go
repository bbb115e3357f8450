package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/sentriwatch/notification-engine/internal/config"
	"github.com/sentriwatch/notification-engine/internal/domain"
	"github.com/sentriwatch/notification-engine/internal/handler"
	"github.com/sentriwatch/notification-engine/internal/health"
	"github.com/sentriwatch/notification-engine/internal/infra/claimsigner"
	"github.com/sentriwatch/notification-engine/internal/infra/decisionlog"
	"github.com/sentriwatch/notification-engine/internal/infra/snapshot"
	"github.com/sentriwatch/notification-engine/internal/infra/subscription"
	"github.com/sentriwatch/notification-engine/internal/infra/webpush"
	"github.com/sentriwatch/notification-engine/internal/observability"
	"github.com/sentriwatch/notification-engine/internal/observability/logging"
	"github.com/sentriwatch/notification-engine/internal/observability/metrics"
	"github.com/sentriwatch/notification-engine/internal/service/cooldown"
	"github.com/sentriwatch/notification-engine/internal/service/dispatch"
	"github.com/sentriwatch/notification-engine/internal/service/engine"
	"github.com/sentriwatch/notification-engine/internal/service/ledger"
)

// Version is set via ldflags at build time
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		return 1
	}

	obs, err := observability.Init(ctx, observability.Config{
		ServiceInfo: logging.ServiceInfo{
			Name:    "notification-engine",
			Version: Version,
		},
		LogLevel: cfg.LogLevel,
	})
	if err != nil {
		slog.Error("failed to initialize observability", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			slog.Warn("observability shutdown error", slog.String("error", err.Error()))
		}
	}()

	slog.SetDefault(obs.Logger())
	logger := obs.Logger()

	if err := config.ValidateForRun(cfg); err != nil {
		slog.Error("configuration validation error", slog.String("error", err.Error()))
		return 1
	}

	// Camera configuration with hot reload.
	cameraManager := config.NewManager(cfg.CameraConfigPath)
	doc, err := cameraManager.Load()
	if err != nil {
		slog.Error("failed to load camera configuration",
			slog.String("path", cfg.CameraConfigPath),
			slog.String("error", err.Error()))
		return 1
	}
	if !doc.AnyEnabled() {
		slog.Warn("notifications are not enabled for any camera")
	}

	// Snapshot persistence backend.
	store, err := initSnapshotStore(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to initialize snapshot store", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("failed to close snapshot store", slog.String("error", err.Error()))
		}
	}()

	weightLedger := ledger.New()
	policy := cooldown.NewPolicy(weightLedger)
	saver := snapshot.NewSaver(store, weightLedger.Snapshot,
		time.Duration(cfg.SaveIntervalSeconds)*time.Second, logger)

	registry, err := subscription.Open(cfg.SubscriptionsDB)
	if err != nil {
		slog.Error("failed to open subscription database",
			slog.String("path", cfg.SubscriptionsDB),
			slog.String("error", err.Error()))
		return 1
	}

	var signer domain.ClaimSigner
	if cfg.ClaimSignerURL != "" {
		signer = claimsigner.NewClient(cfg.ClaimSignerURL, cfg.SenderEmail)
		slog.Info("claim signer configured", slog.String("url", cfg.ClaimSignerURL))
	} else {
		signer = claimsigner.NewNoopSigner()
		slog.Warn("CLAIM_SIGNER_URL not set, push claims will be unsigned")
	}

	decisionRecorder, err := decisionlog.NewRecorder(ctx, decisionlog.LoadConfig())
	if err != nil {
		slog.Error("failed to initialize decision recorder", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := decisionRecorder.Close(); err != nil {
			slog.Warn("failed to close decision recorder", slog.String("error", err.Error()))
		}
	}()

	engineMetrics, err := metrics.NewEngineMetrics()
	if err != nil {
		slog.Error("failed to initialize engine metrics", slog.String("error", err.Error()))
		return 1
	}

	queue := dispatch.NewQueue()
	worker := dispatch.NewWorker(queue, registry, signer, webpush.NewTransport(), logger,
		dispatch.WithPollInterval(time.Duration(cfg.WorkerPollSeconds)*time.Second),
		dispatch.WithClaimLifetime(time.Duration(cfg.ClaimLifetimeHours)*time.Hour),
		dispatch.WithMetrics(engineMetrics),
	)

	eng := engine.New(cameraManager, weightLedger, policy, queue, registry,
		saver, decisionRecorder, engineMetrics, logger)
	eng.ApplyConfig(doc)

	// Restore persisted weights after the ledger knows its cameras.
	snap, err := store.Load(ctx)
	if err != nil {
		slog.Error("failed to load ledger snapshot", slog.String("error", err.Error()))
		return 1
	}
	weightLedger.Restore(snap)
	slog.Info("ledger snapshot restored", slog.Int("cameras", len(snap)))

	go worker.Run(ctx)

	// React to config file rewrites.
	updates := cameraManager.Subscribe(1)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case newDoc := <-updates:
				eng.ApplyConfig(newDoc)
			}
		}
	}()
	go func() {
		if err := cameraManager.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("camera config watcher stopped", slog.String("error", err.Error()))
		}
	}()

	// Periodic decay sweep keeps idle cameras' snapshots trimmed.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 1h", func() { eng.PruneAll(ctx) }); err != nil {
		slog.Error("failed to schedule decay sweep", slog.String("error", err.Error()))
		return 1
	}
	sweeper.Start()
	defer sweeper.Stop()

	// HTTP surface.
	notificationHandler := handler.NewNotificationHandler(eng, registry)
	actionsHandler := handler.NewCameraActionsHandler(cameraManager)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	healthChecker := health.NewChecker(Version, map[string]health.Pinger{
		"snapshot_store": store,
	})
	r.GET("/health/live", healthChecker.LiveHandler())
	r.GET("/health/ready", healthChecker.ReadyHandler())
	r.GET("/health", healthChecker.ReadyHandler())

	v1 := r.Group("/api/v1")
	{
		v1.POST("/events/review", notificationHandler.HandleReviewEvent)
		v1.POST("/events/trigger", notificationHandler.HandleTriggerEvent)

		v1.POST("/notifications", notificationHandler.HandleSendCustom)
		v1.POST("/notifications/test", notificationHandler.HandleTest)
		v1.GET("/notifications/stats", notificationHandler.HandleWeightStats)
		v1.GET("/notifications/stats/:camera", notificationHandler.HandleCameraWeightStats)

		v1.POST("/subscriptions/:user", notificationHandler.HandleRegister)

		v1.POST("/cameras/:camera/suspend", notificationHandler.HandleSuspend)
		v1.POST("/cameras/:camera/unsuspend", notificationHandler.HandleUnsuspend)
		v1.GET("/cameras/:camera/suspended", notificationHandler.HandleSuspended)
		v1.GET("/cameras/:camera/actions", actionsHandler.HandleListActions)
		v1.POST("/cameras/:camera/actions/:name", actionsHandler.HandleRunAction)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Port),
			slog.String("snapshot_backend", cfg.SnapshotBackend),
			slog.Int("cameras", len(doc.Cameras)),
		)
		serverErr <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.String("error", err.Error()))
			return 1
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	// Drain the dispatch queue and persist the ledger before stopping the
	// background watchers.
	eng.Shutdown(shutdownCtx, worker)
	cancel()

	slog.Info("server stopped")
	return 0
}

func initSnapshotStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.SnapshotStore, error) {
	if cfg.SnapshotBackend != "redis" {
		return snapshot.NewFileStore(cfg.SnapshotPath, logger), nil
	}

	opts := &redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	if cfg.Redis.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(opts)

	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		return nil, err
	}

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	slog.Info("redis connected", slog.String("addr", cfg.Redis.Addr))
	return snapshot.NewRedisStore(redisClient, logger), nil
}
