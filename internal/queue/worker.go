package queue

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/concurrency"
	"github.com/scenegenhq/sgs/internal/domain"
	"github.com/scenegenhq/sgs/pkg/retry"
)

// Worker drains a Queue and dispatches each job to handler, bounding
// concurrency with a channel-based Semaphore. Retries are driven entirely
// through the queue: a failed job is requeued with a bumped attempt counter
// after a backoff delay, and dropped once the attempt budget is spent.
type Worker struct {
	queue      Queue
	handler    Handler
	logger     *zap.Logger
	concurrent *concurrency.Semaphore
	retryCfg   retry.Config
}

// NewWorker builds a Worker that runs up to maxConcurrent jobs at once.
func NewWorker(q Queue, handler Handler, maxConcurrent int, logger *zap.Logger) *Worker {
	return &Worker{
		queue:      q,
		handler:    handler,
		logger:     logger,
		concurrent: concurrency.NewSemaphore(maxConcurrent),
		retryCfg:   retry.QueueConfig(),
	}
}

// Run drains the queue until ctx is cancelled. Each dequeued job is handled
// on its own goroutine once a semaphore slot is free.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to dequeue job", zap.Error(err))
			continue
		}
		if job == nil {
			continue
		}

		if err := w.concurrent.Acquire(ctx); err != nil {
			return
		}
		go w.process(ctx, *job)
	}
}

func (w *Worker) process(ctx context.Context, job domain.Job) {
	defer w.concurrent.Release()

	err := w.handler(ctx, job)
	if err == nil {
		if ackErr := w.queue.Ack(ctx, job); ackErr != nil {
			w.logger.Error("failed to ack job", zap.Error(ackErr))
		}
		return
	}

	w.logger.Error("job failed",
		zap.String("job_id", job.ID),
		zap.String("kind", job.Kind),
		zap.String("generation_id", job.GenerationID),
		zap.Int("attempt", job.Attempt+1),
		zap.Error(err),
	)

	// The generation row already reflects the failure; once the attempt
	// budget is spent the job itself is removed rather than requeued.
	if job.Attempt+1 >= w.retryCfg.MaxAttempts {
		w.logger.Error("job exhausted its retry budget, dropping",
			zap.String("job_id", job.ID),
			zap.String("generation_id", job.GenerationID),
			zap.Int("attempts", job.Attempt+1),
		)
		if ackErr := w.queue.Ack(ctx, job); ackErr != nil {
			w.logger.Error("failed to remove exhausted job", zap.Error(ackErr))
		}
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(w.retryCfg.Delay(job.Attempt)):
	}

	if nackErr := w.queue.Nack(ctx, job); nackErr != nil {
		w.logger.Error("failed to requeue job", zap.Error(nackErr))
	}
}
