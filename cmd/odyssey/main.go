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
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-grn/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-grn/internal/app"
	"github.com/odyssey-erp/odyssey-grn/internal/grn"
	"github.com/odyssey-erp/odyssey-grn/internal/inventory"
	"github.com/odyssey-erp/odyssey-grn/internal/masterdata"
	"github.com/odyssey-erp/odyssey-grn/internal/observability"
	"github.com/odyssey-erp/odyssey-grn/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-grn/internal/platform/db"
	"github.com/odyssey-erp/odyssey-grn/internal/procurement"
	"github.com/odyssey-erp/odyssey-grn/internal/rbac"
	"github.com/odyssey-erp/odyssey-grn/internal/shared"
	"github.com/odyssey-erp/odyssey-grn/jobs"
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := cli.RunJobs(ctx, cfg.RedisAddr, os.Args[2:], os.Stdout); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	var redisClient redis.UniversalClient
	var locker *shared.Locker
	if cfg.RedisEnabled {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		redisClient = client
		locker = shared.NewLocker(client, cfg.GRNLockTTL, cfg.GRNLockWait)
	} else {
		logger.Warn("redis disabled: master data cache, grn locks and approval jobs are off")
	}

	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Logger: logger}

	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), idempotencyStore, logger)
	procurementService := procurement.NewService(procurement.NewRepository(dbpool))
	directory := masterdata.NewDirectory(
		masterdata.NewRepository(dbpool),
		masterdata.NewCache(redisClient, cfg.MasterDataCacheTTL),
		logger,
	)

	grnService := grn.NewService(
		grn.NewRepository(dbpool),
		grn.NewInventoryAdapter(inventoryService),
		procurementService,
		directory,
		logger,
	)
	grnService.SetLocker(locker)
	grnService.SetMetrics(metrics.Workflow())

	var jobHandler *jobs.Handler
	if cfg.RedisEnabled {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobClient, err := jobs.NewClient(redisOpts, logger)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		grnService.SetIntegrationHandler(jobClient)

		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		GRNHandler:       grn.NewHandler(logger, grnService, rbacMiddleware),
		InventoryHandler: inventory.NewHandler(logger, inventoryService, rbacMiddleware),
		JobHandler:       jobHandler,
		Metrics:          metrics,
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
