package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"slideloop/internal/config"
	"slideloop/internal/exports/engine"
	"slideloop/internal/pkg/logger"
	"slideloop/internal/pkg/metrics"
	"slideloop/internal/storage"
	"slideloop/internal/worker"
)

func main() {
	log := logger.New(logger.Config{
		Level:       "info",
		Format:      "json",
		ServiceName: "slideloop-worker",
	})

	cfg, err := config.LoadWorker()
	if err != nil {
		log.LogFatal("failed to load configuration", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	sp, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}

	strategy, err := engine.NewStrategy(engine.StrategyConfig{
		Env:        cfg.Engine.Env,
		BinaryPath: cfg.Engine.Binary,
		PackURL:    cfg.Engine.PackURL,
		CacheDir:   cfg.Engine.CacheDir,
	})
	if err != nil {
		log.LogFatal("failed to configure render engine", err)
	}

	metricsSrv := metrics.NewServer(cfg.MetricsPort)
	go func() {
		log.Info("metrics server listening", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", "error", err.Error())
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	log.Info("worker started",
		"queue", cfg.QueueName,
		"storage", sp.Provider(),
		"engine", strategy.Name(),
		"concurrency", cfg.RenderConcurrency,
	)

	err = worker.Run(ctx, worker.Deps{
		Pool:        pool,
		RDB:         rdb,
		QueueName:   cfg.QueueName,
		SP:          sp,
		Renderer:    engine.NewChromium(strategy, log),
		AppOrigin:   cfg.AppOrigin,
		ProxySecret: cfg.ProxySecret,
		Concurrency: cfg.RenderConcurrency,
		Log:         log,
	})
	if err != nil && err != context.Canceled {
		log.LogFatal("worker stopped unexpectedly", err)
	}
	log.Info("worker stopped")
}
