package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-grn/internal/app"
	"github.com/odyssey-erp/odyssey-grn/internal/grn"
	"github.com/odyssey-erp/odyssey-grn/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-grn/internal/jobs"
	"github.com/odyssey-erp/odyssey-grn/internal/platform/db"
	"github.com/odyssey-erp/odyssey-grn/internal/shared"
	"github.com/odyssey-erp/odyssey-grn/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	inventoryService := inventory.NewService(inventory.NewRepository(pool), shared.NewIdempotencyStore(pool), logger)
	integrityJob := jobs.NewIntegrityJob(
		grn.NewRepository(pool),
		inventoryService,
		logger,
		jobmetrics.NewMetrics(nil),
		cfg.IntegrityScanDays,
	)

	scanTask, err := jobs.NewGRNIntegrityScanTask(cfg.IntegrityScanDays)
	if err != nil {
		logger.Error("build integrity scan task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskGRNApproved, Handler: integrityJob.HandleApproved},
			{Type: jobs.TaskGRNIntegrityScan, Handler: integrityJob.HandleScan},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.IntegrityScanCron, Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
