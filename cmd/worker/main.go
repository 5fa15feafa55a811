package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/juckphai/salejuck/internal/app"
	"github.com/juckphai/salejuck/internal/platform/replica"
	"github.com/juckphai/salejuck/jobs"
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

	if !cfg.RemoteConfigured() {
		logger.Error("worker requires REDIS_ADDR")
		os.Exit(1)
	}

	remote, err := replica.NewRedis(ctx, cfg.RedisAddr, cfg.DocumentKey)
	if err != nil {
		logger.Error("connect replica", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockConsistency, Handler: jobs.NewStockConsistencyHandler(logger, remote)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ConsistencyCron, Task: jobs.NewStockConsistencyTask()},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("cron", cfg.ConsistencyCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
