package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/juckphai/salejuck/internal/app"
	"github.com/juckphai/salejuck/internal/auth"
	"github.com/juckphai/salejuck/internal/backup"
	"github.com/juckphai/salejuck/internal/inventory"
	"github.com/juckphai/salejuck/internal/masterdata"
	"github.com/juckphai/salejuck/internal/platform/localstore"
	"github.com/juckphai/salejuck/internal/platform/replica"
	"github.com/juckphai/salejuck/internal/sales"
	syncpkg "github.com/juckphai/salejuck/internal/sync"
	"github.com/juckphai/salejuck/jobs"
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

	local, err := localstore.Open(cfg.LocalDBPath)
	if err != nil {
		logger.Error("open local store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := local.Close(); err != nil {
			logger.Warn("local store close", slog.Any("error", err))
		}
	}()

	// The replica is optional: without REDIS_ADDR the node runs offline
	// and every operation works against the local copy alone.
	var remote replica.Replica
	if cfg.RemoteConfigured() {
		redisReplica, err := replica.NewRedis(ctx, cfg.RedisAddr, cfg.DocumentKey)
		if err != nil {
			logger.Warn("remote replica unreachable, starting offline", slog.Any("error", err))
		} else {
			remote = redisReplica
		}
	}

	engine := syncpkg.New(syncpkg.Config{
		Local:       local,
		Remote:      remote,
		Logger:      logger,
		Key:         cfg.DocumentKey,
		PushTimeout: cfg.SyncPushTimeout,
	})
	source, err := engine.Load(ctx)
	if err != nil {
		logger.Error("load document", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("document ready", slog.String("source", string(source)))

	authService := auth.NewService(logger, engine)
	authHandler := auth.NewHandler(logger, authService)

	syncHandler := syncpkg.NewHandler(logger, engine)

	inventoryService := inventory.NewService(logger, engine)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	salesService := sales.NewService(logger, engine)
	salesHandler := sales.NewHandler(logger, salesService)

	masterDataService := masterdata.NewService(logger, engine)
	masterDataHandler := masterdata.NewHandler(logger, masterDataService)

	backupService := backup.NewService(logger, engine)
	backupHandler := backup.NewHandler(logger, backupService)

	var jobHandler *jobs.Handler
	if cfg.RemoteConfigured() {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobClient, err := jobs.NewClient(redisOpts)
		if err != nil {
			logger.Warn("jobs client", slog.Any("error", err))
		} else {
			defer func() {
				if err := jobClient.Close(); err != nil {
					logger.Warn("jobs client close", slog.Any("error", err))
				}
			}()
			jobHandler = jobs.NewHandler(inspector, jobClient, logger)
		}
	}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthService:       authService,
		AuthHandler:       authHandler,
		SyncHandler:       syncHandler,
		InventoryHandler:  inventoryHandler,
		SalesHandler:      salesHandler,
		MasterDataHandler: masterDataHandler,
		BackupHandler:     backupHandler,
		JobHandler:        jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		engine.StopRealtimeSync()
		engine.Flush()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
