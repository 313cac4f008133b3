package pipeline

import (
	"context"
	"path/filepath"

	"github.com/scenegenhq/sgs/internal/domain"
	sgserrors "github.com/scenegenhq/sgs/pkg/errors"
)

// PiPSizes are the named picture-in-picture frame sizes.
var PiPSizes = map[string][2]int{
	"small":  {320, 180},
	"medium": {480, 270},
	"large":  {640, 360},
}

const pipInsetPx = 10

// PiPPipeline renders kind=pip scenes: the base clip with a
// secondary source scaled and overlaid at a corner.
//
// SceneProjectInputs carries a single resolved video input, so a distinct
// secondary source is never available in this data model; per the
// documented behaviour the base clip is always reused at reduced size as
// its own secondary.
type PiPPipeline struct{}

func NewPiPPipeline() *PiPPipeline {
	return &PiPPipeline{}
}

func (p *PiPPipeline) CanHandle(kind string) bool {
	return kind == domain.SceneKindPIP
}

func (p *PiPPipeline) Render(ctx context.Context, rc RenderContext, project domain.SceneProject) (RenderResult, error) {
	basePath, err := renderTrimmedClip(ctx, rc, project)
	if err != nil {
		return RenderResult{}, err
	}

	size := project.Extra.Size
	if size == "" {
		size = "small"
	}
	dims, ok := PiPSizes[size]
	if !ok {
		dims = PiPSizes["small"]
	}

	corner := project.Extra.Position
	if corner == "" {
		corner = "top-right"
	}

	compositedPath := filepath.Join(rc.TempDir, project.SceneID+"-pip.mp4")
	if err := PiPOverlay(ctx, rc.Logger, basePath, basePath, compositedPath, dims[0], dims[1], corner, pipInsetPx); err != nil {
		return RenderResult{}, sgserrors.NewAPIError(sgserrors.ErrMediaError, err.Error(), nil)
	}

	return uploadRenderedScene(ctx, rc, project.SceneID, compositedPath)
}
