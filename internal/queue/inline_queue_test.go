package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/domain"
)

func TestInlineQueue_SubmitRunsHandlerSynchronously(t *testing.T) {
	var handled domain.Job
	q := NewInlineQueue(func(ctx context.Context, job domain.Job) error {
		handled = job
		return nil
	}, zap.NewNop())

	err := q.Submit(context.Background(), domain.Job{Kind: domain.JobKindGenerate, GenerationID: "gen-3"})
	require.NoError(t, err)
	require.Equal(t, "gen-3", handled.GenerationID)
	require.NotEmpty(t, handled.ID)
}

// TestDegradedMode_InlineQueueRunsJobViaQueueInterface: an InlineQueue used
// through the Queue interface, as the degraded-mode backend is, runs the
// handler on Submit.
func TestDegradedMode_InlineQueueRunsJobViaQueueInterface(t *testing.T) {
	var ranInline bool
	inline := NewInlineQueue(func(ctx context.Context, job domain.Job) error {
		ranInline = true
		return nil
	}, zap.NewNop())

	var q Queue = inline
	require.NoError(t, q.Submit(context.Background(), domain.Job{Kind: domain.JobKindGenerate, GenerationID: "gen-4"}))
	require.True(t, ranInline)
}
