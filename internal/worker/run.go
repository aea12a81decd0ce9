package worker

import (
	"context"
	"time"

	"slideloop/internal/cache"
	"slideloop/internal/exports/background"
	"slideloop/internal/exports/materialize"
	"slideloop/internal/exports/signing"
	"slideloop/internal/pkg/logger"
	"slideloop/internal/repositories"
	"slideloop/internal/worker/orchestrator"
	"slideloop/internal/worker/queue"
)

// Run is the worker loop: block on the queue, process one run, repeat until
// the context dies. Queue hiccups back off and retry; a failed run never
// stops the loop.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	q := queue.NewRedisQueue(d.RDB, d.QueueName)
	signer := signing.New(d.SP, d.ProxySecret, d.AppOrigin)

	o := orchestrator.New(orchestrator.Deps{
		Runs:         repositories.NewExportRepository(d.Pool),
		Carousels:    repositories.NewCarouselRepository(d.Pool),
		SP:           d.SP,
		Renderer:     d.Renderer,
		Resolver:     background.NewResolver(signer),
		Materializer: materialize.New(d.SP, signer, cache.NewBounded(512), log),
		Concurrency:  d.Concurrency,
		Log:          log,
	})

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		popCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		runID, err := q.Pop(popCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}
			log.Warn("queue pop error, retrying",
				"error", err.Error(),
			)
			time.Sleep(1 * time.Second)
			continue
		}

		if runID == "" {
			continue
		}

		runCtx := logger.ContextWithRunID(ctx, runID)
		runLog := log.WithRunID(runID)

		runLog.Info("processing export run")
		startTime := time.Now()

		if err := o.ProcessRun(runCtx, runID); err != nil {
			runLog.Error("export run failed",
				"error", err.Error(),
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
		} else {
			runLog.Info("export run completed",
				"duration_ms", time.Since(startTime).Milliseconds(),
			)
		}
	}
}
