package orchestrator

import (
	"context"
	"fmt"

	"github.com/scenegenhq/sgs/internal/domain"
)

// Handler returns a queue.Handler (structurally: func(context.Context,
// domain.Job) error) that dispatches by job kind: generate →
// Execute, continue → Continue, regenerate-scene → RegenerateScene.
func (o *Orchestrator) Handler() func(ctx context.Context, job domain.Job) error {
	return func(ctx context.Context, job domain.Job) error {
		switch job.Kind {
		case domain.JobKindGenerate:
			return o.Execute(ctx, job.GenerationID)
		case domain.JobKindContinue:
			return o.Continue(ctx, job.GenerationID)
		case domain.JobKindRegenerateScene:
			return o.RegenerateScene(ctx, job.GenerationID, job.SceneID)
		default:
			return fmt.Errorf("unknown job kind %q", job.Kind)
		}
	}
}
