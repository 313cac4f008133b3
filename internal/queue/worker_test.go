package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/domain"
	"github.com/scenegenhq/sgs/pkg/retry"
)

func newTestWorker(t *testing.T, q Queue, handler Handler) *Worker {
	t.Helper()
	w := NewWorker(q, handler, 1, zap.NewNop())
	w.retryCfg = retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	return w
}

// runNext dequeues one job and processes it the way Run does.
func runNext(t *testing.T, w *Worker, q *RedisQueue) {
	t.Helper()
	ctx := context.Background()
	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.NoError(t, w.concurrent.Acquire(ctx))
	w.process(ctx, *job)
}

func TestWorker_FailingJobIsDroppedAfterAttemptBudget(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	var calls int
	w := newTestWorker(t, q, func(ctx context.Context, job domain.Job) error {
		calls++
		return errors.New("boom")
	})

	require.NoError(t, q.Submit(ctx, domain.Job{Kind: domain.JobKindGenerate, GenerationID: "gen-1"}))

	for i := 0; i < 3; i++ {
		runNext(t, w, q)
	}
	require.Equal(t, 3, calls)

	// both lists must be drained: the job was dropped, not requeued a
	// fourth time
	q.dequeueWait = 50 * time.Millisecond
	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Nil(t, job)

	inFlight, err := q.client.LLen(ctx, q.processingKey).Result()
	require.NoError(t, err)
	require.Equal(t, int64(0), inFlight)
}

func TestWorker_SucceedingJobIsAckedWithoutRetry(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	var calls int
	w := newTestWorker(t, q, func(ctx context.Context, job domain.Job) error {
		calls++
		return nil
	})

	require.NoError(t, q.Submit(ctx, domain.Job{Kind: domain.JobKindGenerate, GenerationID: "gen-2"}))
	runNext(t, w, q)
	require.Equal(t, 1, calls)

	q.dequeueWait = 50 * time.Millisecond
	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Nil(t, job)

	inFlight, err := q.client.LLen(ctx, q.processingKey).Result()
	require.NoError(t, err)
	require.Equal(t, int64(0), inFlight)
}
