package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/repository"
	sgserrors "github.com/scenegenhq/sgs/pkg/errors"
)

// runPhase4 concatenates every completed scene's rendered asset, in
// orderIndex order, into the final composed video. It returns the
// object-store path and URL of the uploaded result.
func (o *Orchestrator) runPhase4(ctx context.Context, generationID string) (string, string, error) {
	scenes, err := o.deps.Scenes.ListByGeneration(ctx, generationID)
	if err != nil {
		return "", "", err
	}

	var composable []string
	tempDir, err := os.MkdirTemp(o.deps.TempRoot, "sgs-"+generationID+"-phase4-*")
	if err != nil {
		return "", "", fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	for _, scene := range scenes {
		if !scene.IsComposable() {
			continue
		}
		localPath := filepath.Join(tempDir, scene.SceneID+".mp4")
		if err := o.downloadSceneAsset(ctx, scene.RenderedAssetURL, scene.RenderedAssetPath, localPath); err != nil {
			return "", "", sgserrors.NewAPIError(sgserrors.ErrMediaError,
				fmt.Sprintf("failed to fetch rendered asset for scene %s: %v", scene.SceneID, err), nil)
		}
		composable = append(composable, localPath)
	}

	if len(composable) == 0 {
		return "", "", sgserrors.NewAPIError(sgserrors.ErrNothingToCompose, "", nil)
	}

	outPath := filepath.Join(tempDir, "final.mp4")
	if err := o.deps.concat()(ctx, o.deps.Logger, tempDir, composable, outPath); err != nil {
		return "", "", sgserrors.NewAPIError(sgserrors.ErrMediaError, err.Error(), nil)
	}

	key := repository.FinalVideoKey(generationID)
	url, err := o.deps.Storage.UploadFile(ctx, key, outPath, "video/mp4")
	if err != nil {
		return "", "", sgserrors.NewAPIError(sgserrors.ErrStorageError, fmt.Sprintf("failed to upload final video: %v", err), nil)
	}

	return key, url, nil
}

// downloadSceneAsset fetches a rendered scene's asset via its HTTP URL
// first, falling back to the object-store path if that fails.
func (o *Orchestrator) downloadSceneAsset(ctx context.Context, assetURL, assetPath, destPath string) error {
	if assetURL != "" {
		if err := o.deps.Storage.DownloadURL(ctx, assetURL, destPath); err == nil {
			return nil
		} else {
			o.deps.Logger.Warn("failed to fetch rendered asset by URL, falling back to storage path",
				zap.String("url", assetURL), zap.Error(err))
		}
	}
	return o.deps.Storage.DownloadFile(ctx, assetPath, destPath)
}
