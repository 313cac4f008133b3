package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/bootstrap"
	"github.com/scenegenhq/sgs/internal/config"
	"github.com/scenegenhq/sgs/internal/queue"
	"github.com/scenegenhq/sgs/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	if err := config.CheckFFmpeg(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	if app.Redis == nil {
		log.Warn("redis unreachable at startup; this worker has nothing to drain until it recovers, generations will run inline from the API process instead")
	}

	q := app.NewQueue("worker", app.Orchestrator.Handler())
	defer q.Close()

	if _, isInline := q.(*queue.InlineQueue); isInline {
		log.Warn("queue degraded to inline mode, worker process is idle")
		<-ctx.Done()
		return nil
	}

	w := queue.NewWorker(q, app.Orchestrator.Handler(), cfg.WorkerConcurrency, log)
	log.Info("scene generation worker started", zap.Int("concurrency", cfg.WorkerConcurrency))
	w.Run(ctx)

	log.Info("worker shut down")
	return nil
}
