package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/domain"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisQueue(client, "test-worker", zap.NewNop()), mr
}

func TestRedisQueue_SubmitDequeueAck(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	job := domain.Job{Kind: domain.JobKindGenerate, GenerationID: "gen-1"}
	require.NoError(t, q.Submit(ctx, job))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "gen-1", got.GenerationID)
	require.NotEmpty(t, got.ID)

	require.NoError(t, q.Ack(ctx, *got))

	empty, err := q.client.LLen(ctx, q.processingKey).Result()
	require.NoError(t, err)
	require.Equal(t, int64(0), empty)
}

func TestRedisQueue_Nack_Requeues(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Submit(ctx, domain.Job{Kind: domain.JobKindGenerate, GenerationID: "gen-2"}))

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)

	require.NoError(t, q.Nack(ctx, *job))

	// the in-flight entry must be gone and the retry must carry the bumped
	// attempt counter
	inFlight, err := q.client.LLen(ctx, q.processingKey).Result()
	require.NoError(t, err)
	require.Equal(t, int64(0), inFlight)

	requeued, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, requeued)
	require.Equal(t, 1, requeued.Attempt)
}

func TestRedisQueue_Remove_DropsPendingJobsForGeneration(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Submit(ctx, domain.Job{Kind: domain.JobKindGenerate, GenerationID: "gen-keep"}))
	require.NoError(t, q.Submit(ctx, domain.Job{Kind: domain.JobKindGenerate, GenerationID: "gen-drop"}))
	require.NoError(t, q.Submit(ctx, domain.Job{Kind: domain.JobKindContinue, GenerationID: "gen-drop"}))

	require.NoError(t, q.Remove(ctx, "gen-drop"))

	pending, err := q.client.LLen(ctx, streamKey).Result()
	require.NoError(t, err)
	require.Equal(t, int64(1), pending)

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, "gen-keep", job.GenerationID)
}

func TestRedisQueue_Dequeue_TimesOutEmpty(t *testing.T) {
	q, _ := newTestQueue(t)
	q.dequeueWait = 50 * time.Millisecond

	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Nil(t, job)
}
