package queue

import (
	"context"

	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/domain"
)

// InlineQueue runs jobs synchronously on the calling goroutine inside
// Submit. It is the queue-unavailable degraded mode: if Redis cannot be
// reached at startup, the API process falls back to this queue so
// generations still complete, just without the worker pool's concurrency.
type InlineQueue struct {
	handler Handler
	logger  *zap.Logger
}

// NewInlineQueue builds an InlineQueue that invokes handler directly from
// Submit.
func NewInlineQueue(handler Handler, logger *zap.Logger) *InlineQueue {
	return &InlineQueue{handler: handler, logger: logger}
}

func (q *InlineQueue) Submit(ctx context.Context, job domain.Job) error {
	if job.ID == "" {
		job.ID = newJobID()
	}
	q.logger.Warn("queue unavailable, running job inline",
		zap.String("job_id", job.ID),
		zap.String("kind", job.Kind),
		zap.String("generation_id", job.GenerationID),
	)
	return q.handler(ctx, job)
}

// Dequeue never returns work; inline mode has no separate consumer loop.
func (q *InlineQueue) Dequeue(ctx context.Context) (*domain.Job, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// Remove is a no-op: inline jobs run to completion inside Submit, so there
// is never a pending backlog to drop.
func (q *InlineQueue) Remove(ctx context.Context, generationID string) error { return nil }

func (q *InlineQueue) Ack(ctx context.Context, job domain.Job) error { return nil }

func (q *InlineQueue) Nack(ctx context.Context, job domain.Job) error { return nil }

func (q *InlineQueue) Close() error { return nil }
