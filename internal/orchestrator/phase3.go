package orchestrator

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scenegenhq/sgs/internal/domain"
	"github.com/scenegenhq/sgs/internal/pipeline"
)

// runPhase3 renders every scene through its kind's pipeline with bounded
// concurrency. A pipeline exception marks only that scene failed and
// never aborts the phase; batches are processed in orderIndex order so the
// progress formula ("60 + floor(((i+batchSize)/total)*20)") lines up
// with the scenes actually dispatched so far.
func (o *Orchestrator) runPhase3(ctx context.Context, generationID string, g *domain.SceneGeneration, scenes []domain.Scene) error {
	total := len(scenes)
	if total == 0 {
		return nil
	}

	tempDir, err := os.MkdirTemp(o.deps.TempRoot, "sgs-"+generationID+"-phase3-*")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	rc := pipeline.RenderContext{
		Storage:   o.deps.Storage,
		TempDir:   tempDir,
		Logger:    o.deps.Logger,
		VideoURLs: videoURLIndex(g.Videos),
		ImageGen:  o.deps.ImageGen,
	}

	batchSize := o.deps.sceneConcurrency()
	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		batch := scenes[start:end]

		group, groupCtx := errgroup.WithContext(ctx)
		for _, scene := range batch {
			scene := scene
			group.Go(func() error {
				// Per-scene errors are swallowed here (logged + persisted as
				// scene-level failures); only unexpected infrastructure
				// errors (e.g. the repository itself failing) propagate and
				// abort the batch.
				return o.renderOneScene(groupCtx, generationID, rc, scene)
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}

		if cancelled, err := o.checkCancelled(ctx, generationID); err != nil {
			return err
		} else if cancelled {
			return nil
		}

		progress := progressInRange(float64(end)/float64(total), progressPhase2, progressPhase3)
		if err := o.setProgress(ctx, generationID, domain.Phase3, progress); err != nil {
			return err
		}
	}

	return nil
}

// renderOneScene runs the per-scene protocol. A pipeline failure is
// recorded on the scene and swallowed (returns nil) so it never aborts the
// batch's errgroup; only a repository write failure propagates.
func (o *Orchestrator) renderOneScene(ctx context.Context, generationID string, rc pipeline.RenderContext, scene domain.Scene) error {
	logger := o.deps.Logger.With(zap.String("generation_id", generationID), zap.String("scene_id", scene.SceneID))

	if err := o.deps.Scenes.UpdateProgress(ctx, generationID, scene.SceneID, domain.SceneStatusProcessing, 0); err != nil {
		return err
	}

	renderPipeline, err := o.deps.Pipelines.Select(scene.Kind)
	if err != nil {
		logger.Warn("no pipeline registered for scene kind", zap.String("kind", scene.Kind))
		return o.deps.Scenes.UpdateFailed(ctx, generationID, scene.SceneID, err.Error())
	}

	result, err := renderPipeline.Render(ctx, rc, scene.SceneProject)
	if err != nil {
		logger.Warn("scene render failed", zap.Error(err))
		return o.deps.Scenes.UpdateFailed(ctx, generationID, scene.SceneID, err.Error())
	}

	if err := o.deps.Scenes.UpdateRendered(ctx, generationID, scene.SceneID, result.AssetPath, result.AssetURL); err != nil {
		return err
	}
	if len(result.DebugFrameURLs) > 0 {
		if err := o.deps.Scenes.UpdateDebugFrames(ctx, generationID, scene.SceneID, result.DebugFrameURLs); err != nil {
			return err
		}
	}

	o.deps.Hub.PublishSceneComplete(generationID, scene.SceneID, result.AssetURL)
	return nil
}
