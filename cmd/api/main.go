package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/api"
	"github.com/scenegenhq/sgs/internal/bootstrap"
	"github.com/scenegenhq/sgs/internal/config"
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

	// Degraded mode: if Redis was unreachable at startup this is
	// an InlineQueue bound directly to the orchestrator, so POST /generate
	// still completes generations, just synchronously on the request
	// goroutine and without the retry policy.
	q := app.NewQueue("api", app.Orchestrator.Handler())
	defer q.Close()

	server := api.NewServer(&api.ServerConfig{
		Port:        cfg.Port,
		Environment: cfg.Environment,
		Logger:      log,
		Generations: app.Generations,
		Scenes:      app.Scenes,
		Storage:     app.Storage,
		Queue:       q,
		Hub:         app.Hub,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("scene generation API listening", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
