package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/truemargin/truemargin/internal/adspend"
	"github.com/truemargin/truemargin/internal/app"
	"github.com/truemargin/truemargin/internal/costmodel"
	"github.com/truemargin/truemargin/internal/fxrate"
	"github.com/truemargin/truemargin/internal/platform/cache"
	"github.com/truemargin/truemargin/internal/platform/db"
	"github.com/truemargin/truemargin/internal/profit"
	"github.com/truemargin/truemargin/internal/report"
	"github.com/truemargin/truemargin/internal/snapshot"
	"github.com/truemargin/truemargin/internal/storefront"
	"github.com/truemargin/truemargin/internal/stores"
	"github.com/truemargin/truemargin/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	rates := fxrate.NewService(fxrate.Options{
		Redis:    redisClient,
		URL:      cfg.FXRateURL,
		Fallback: cfg.FXFallbackRate,
		TTL:      cfg.FXRateTTL,
		Logger:   logger,
	})

	storefrontClient := storefront.NewClient(cfg.StorefrontAPIVersion, cfg.StorefrontTimeout)
	adSpendClient := adspend.NewClient(cfg.AdSpendBaseURL, cfg.AdSpendToken)

	storeRepo := stores.NewRepository(pool)
	costModels := costmodel.NewRepository(pool, logger, costmodel.ProcessingFee{
		Percent: cfg.FeePercentDefault,
		Fixed:   cfg.FeeFixedDefault,
	})

	engine := profit.NewEngine(
		storefrontClient,
		profit.NewReconciler(storefrontClient, cfg.LedgerPageSize),
		storefrontClient,
		adSpendClient,
		rates,
		costModels,
		logger,
	)

	snapshots := snapshot.NewStore(pool)
	reportService := report.NewService(storeRepo, engine, snapshots, nil, logger, cfg.SnapshotFreshFor)

	warmupJob := jobs.NewProfitWarmupJob(storeRepo, reportService, logger, nil)
	refreshJob := jobs.NewProfitRefreshJob(storeRepo, reportService, logger, nil)
	sweepJob := jobs.NewSnapshotSweepJob(snapshots, logger, nil)

	warmupTask, err := jobs.NewProfitWarmupTask(jobs.ProfitWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskProfitWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskProfitRefresh, Handler: refreshJob.Handle},
			{Type: jobs.TaskSnapshotSweep, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 * * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(2)}},
			{Spec: "30 3 * * *", Task: jobs.NewSnapshotSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
