package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/domain"
	"github.com/scenegenhq/sgs/internal/repository"
	sgserrors "github.com/scenegenhq/sgs/pkg/errors"
)

// VideoPipeline renders kind=video scenes: trim, then scale to fit and pad
// to the render context's aspect ratio, centred letterbox. The source is
// not cropped.
type VideoPipeline struct{}

func NewVideoPipeline() *VideoPipeline {
	return &VideoPipeline{}
}

func (p *VideoPipeline) CanHandle(kind string) bool {
	return kind == domain.SceneKindVideo
}

func (p *VideoPipeline) Render(ctx context.Context, rc RenderContext, project domain.SceneProject) (RenderResult, error) {
	trimmedPath, err := renderTrimmedClip(ctx, rc, project)
	if err != nil {
		return RenderResult{}, err
	}
	return uploadRenderedScene(ctx, rc, project.SceneID, trimmedPath)
}

// renderTrimmedClip is shared by the video, overlay and pip pipelines: it
// downloads the source, trims and letterboxes it to the render context's
// aspect ratio at render width, and leaves the result at a local
// path so overlay/pip can composite further before uploading.
func renderTrimmedClip(ctx context.Context, rc RenderContext, project domain.SceneProject) (string, error) {
	if project.Inputs.Video == nil {
		return "", sgserrors.NewAPIError(sgserrors.ErrMediaError, "scene requires inputs.video but none was resolved", nil)
	}
	video := project.Inputs.Video

	url, ok := rc.VideoURLs[video.ID]
	if !ok || url == "" {
		return "", sgserrors.NewAPIError(sgserrors.ErrMediaError, fmt.Sprintf("no source URL resolved for video id %q", video.ID), nil)
	}

	srcPath := filepath.Join(rc.TempDir, project.SceneID+"-src")
	if err := rc.Storage.DownloadURL(ctx, url, srcPath); err != nil {
		return "", sgserrors.NewAPIError(sgserrors.ErrMediaError, fmt.Sprintf("failed to download source video: %v", err), nil)
	}

	width := project.RenderContext.Width
	height := domain.EvenHeight(float64(project.RenderContext.Height))

	trimmedPath := filepath.Join(rc.TempDir, project.SceneID+"-trimmed.mp4")
	if err := TrimAndLetterbox(ctx, rc.Logger, srcPath, trimmedPath, video.FromSeconds, video.ToSeconds, width, height); err != nil {
		return "", sgserrors.NewAPIError(sgserrors.ErrMediaError, err.Error(), nil)
	}

	return trimmedPath, nil
}

func uploadRenderedScene(ctx context.Context, rc RenderContext, sceneID, localPath string) (RenderResult, error) {
	if info, err := os.Stat(localPath); err != nil || info.Size() == 0 {
		return RenderResult{}, sgserrors.NewAPIError(sgserrors.ErrMediaError, "rendered output is missing or empty", nil)
	}

	key := repository.RenderedSceneKey(sceneID)
	url, err := rc.Storage.UploadFile(ctx, key, localPath, "video/mp4")
	if err != nil {
		return RenderResult{}, sgserrors.NewAPIError(sgserrors.ErrStorageError, fmt.Sprintf("failed to upload rendered scene: %v", err), nil)
	}

	if _, err := Probe(ctx, localPath); err != nil {
		rc.Logger.Warn("failed to re-probe rendered scene for ground-truth duration",
			zap.String("scene_id", sceneID), zap.Error(err))
	}

	return RenderResult{AssetPath: key, AssetURL: url}, nil
}
