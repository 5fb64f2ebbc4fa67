package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/truemargin/truemargin/internal/adspend"
	"github.com/truemargin/truemargin/internal/app"
	"github.com/truemargin/truemargin/internal/costmodel"
	"github.com/truemargin/truemargin/internal/fxrate"
	"github.com/truemargin/truemargin/internal/observability"
	"github.com/truemargin/truemargin/internal/platform/cache"
	"github.com/truemargin/truemargin/internal/platform/db"
	"github.com/truemargin/truemargin/internal/profit"
	"github.com/truemargin/truemargin/internal/report"
	reporthttp "github.com/truemargin/truemargin/internal/report/http"
	"github.com/truemargin/truemargin/internal/snapshot"
	"github.com/truemargin/truemargin/internal/storefront"
	"github.com/truemargin/truemargin/internal/stores"
	"github.com/truemargin/truemargin/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	metrics := observability.NewMetrics()
	snapshots := snapshot.NewStore(pool)
	reportService := report.NewService(storeRepo, engine, snapshots, metrics, logger, cfg.SnapshotFreshFor)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	reportHandler := reporthttp.NewHandler(logger, reportService, jobClient)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		ReportHandler: reportHandler,
		JobHandler:    jobHandler,
		Metrics:       metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
