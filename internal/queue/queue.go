// Package queue dispatches SceneGeneration jobs to the orchestrator. The
// primary backend is Redis. The backend is chosen once at startup: if Redis
// is unreachable then, an InlineQueue runs jobs synchronously instead. A
// RedisQueue whose server becomes unreachable later returns the enqueue
// error from Submit; it does not switch to inline execution.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/scenegenhq/sgs/internal/domain"
)

// Queue accepts and hands out domain.Job work items.
type Queue interface {
	// Submit enqueues job for processing. It never blocks on the job itself
	// running; the caller gets control back once the job is durably queued
	// (or, in degraded mode, once it has run inline).
	Submit(ctx context.Context, job domain.Job) error

	// Dequeue blocks up to timeout for the next job. It returns
	// (nil, nil) on timeout with no job available.
	Dequeue(ctx context.Context) (*domain.Job, error)

	// Ack marks job as successfully processed.
	Ack(ctx context.Context, job domain.Job) error

	// Nack returns job to the queue for retry, bumping job.Attempt itself.
	// Pass the job exactly as Dequeue returned it so the in-flight entry
	// can be matched and removed. Nack does not enforce the attempt budget;
	// the worker stops requeueing once it is spent.
	Nack(ctx context.Context, job domain.Job) error

	// Remove drops any still-pending jobs for generationID (best effort;
	// in-flight jobs are not touched). Cancellation uses this so a cancelled
	// generation doesn't get picked up after the fact.
	Remove(ctx context.Context, generationID string) error

	// Close releases any held connections.
	Close() error
}

// Handler executes one job. It is supplied by the caller (the worker, or
// the inline queue's Submit path) so this package stays decoupled from the
// orchestrator.
type Handler func(ctx context.Context, job domain.Job) error

const streamKey = "sgs:jobs"
const processingKeyPrefix = "sgs:jobs:processing:"

func newJobID() string {
	return uuid.NewString()
}

func encodeJob(job domain.Job) ([]byte, error) {
	b, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job: %w", err)
	}
	return b, nil
}

func decodeJob(raw string) (domain.Job, error) {
	var job domain.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return domain.Job{}, fmt.Errorf("failed to decode job: %w", err)
	}
	return job, nil
}
