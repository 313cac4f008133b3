package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/domain"
)

// RedisQueue is a reliable-list queue: Dequeue atomically moves a job from
// the pending list to a per-worker processing list (BRPOPLPUSH), and Ack
// removes it from there. A job left in the processing list past its lease
// is eligible for requeue by an external reaper (not implemented here;
// at-least-once delivery within a single worker's lifetime is all that is
// needed, and BRPOPLPUSH already gives it).
type RedisQueue struct {
	client        *redis.Client
	logger        *zap.Logger
	dequeueWait   time.Duration
	processingKey string
}

// NewRedisQueue builds a RedisQueue. workerID scopes the processing list so
// multiple worker processes don't contend over the same in-flight list.
func NewRedisQueue(client *redis.Client, workerID string, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client:        client,
		logger:        logger,
		dequeueWait:   5 * time.Second,
		processingKey: processingKeyPrefix + workerID,
	}
}

func (q *RedisQueue) Submit(ctx context.Context, job domain.Job) error {
	if job.ID == "" {
		job.ID = newJobID()
	}
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, streamKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*domain.Job, error) {
	raw, err := q.client.BRPopLPush(ctx, streamKey, q.processingKey, q.dequeueWait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	job, err := decodeJob(raw)
	if err != nil {
		// Drop the poisoned entry rather than spinning on it forever.
		q.client.LRem(ctx, q.processingKey, 1, raw)
		return nil, err
	}
	return &job, nil
}

func (q *RedisQueue) Ack(ctx context.Context, job domain.Job) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := q.client.LRem(ctx, q.processingKey, 1, payload).Err(); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Nack(ctx context.Context, job domain.Job) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.processingKey, 1, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove job from processing list: %w", err)
	}
	job.Attempt++
	return q.Submit(ctx, job)
}

// Remove scans the pending list and drops every job for generationID. Jobs
// already moved to a processing list are left alone; the orchestrator's
// status checks stop those at the next phase boundary.
func (q *RedisQueue) Remove(ctx context.Context, generationID string) error {
	entries, err := q.client.LRange(ctx, streamKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to list pending jobs: %w", err)
	}
	for _, raw := range entries {
		job, err := decodeJob(raw)
		if err != nil {
			continue
		}
		if job.GenerationID == generationID {
			if err := q.client.LRem(ctx, streamKey, 1, raw).Err(); err != nil {
				return fmt.Errorf("failed to remove pending job: %w", err)
			}
		}
	}
	return nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping verifies the Redis backend is reachable; used at startup to decide
// whether to fall back to the inline queue.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
