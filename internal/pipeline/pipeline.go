package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/adapters"
	"github.com/scenegenhq/sgs/internal/domain"
	"github.com/scenegenhq/sgs/internal/repository"
	sgserrors "github.com/scenegenhq/sgs/pkg/errors"
)

// RenderContext carries everything a pipeline needs to render one scene
// project into an uploaded mp4.
type RenderContext struct {
	Storage repository.AssetRepository
	TempDir string
	Logger  *zap.Logger

	// VideoURLs maps a GenerationRequest video id to its source URL; the
	// SceneProject's inputs.video only carries the id, so pipelines
	// that consume a source video resolve it here.
	VideoURLs map[string]string

	// ImageGen generates a banner foreground image when no supplied image
	// matches imageHints. Nil disables generation (banner then
	// falls back to no foreground image).
	ImageGen adapters.ImageGenClient
}

// RenderResult is a pipeline's successful output.
type RenderResult struct {
	AssetPath      string
	AssetURL       string
	DebugFrameURLs []string
}

// Pipeline renders one scene kind. Implementations must be safe for
// concurrent use by independent goroutines against distinct RenderContexts;
// phase 3 renders up to SceneConcurrency (default three) scenes at once.
type Pipeline interface {
	CanHandle(kind string) bool
	Render(ctx context.Context, rc RenderContext, project domain.SceneProject) (RenderResult, error)
}

// Registry holds every registered Pipeline and selects one by scene kind.
// No switch-on-kind lives in the orchestrator; new kinds are additions here
//.
type Registry struct {
	pipelines []Pipeline
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(p Pipeline) {
	r.pipelines = append(r.pipelines, p)
}

// Select returns the first registered pipeline that claims kind, or
// ErrNoPipeline.
func (r *Registry) Select(kind string) (Pipeline, error) {
	for _, p := range r.pipelines {
		if p.CanHandle(kind) {
			return p, nil
		}
	}
	return nil, sgserrors.NewAPIError(sgserrors.ErrNoPipeline, fmt.Sprintf("no pipeline registered for kind %q", kind), nil)
}
