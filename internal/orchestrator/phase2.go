package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scenegenhq/sgs/internal/domain"
	sgserrors "github.com/scenegenhq/sgs/pkg/errors"
)

// runPhase2 turns the scenario into SceneProject records and persists one
// Scene row per timeline item. It enforces the full per-kind
// invariant set deferred from phase 1.
func (o *Orchestrator) runPhase2(ctx context.Context, generationID string, g *domain.SceneGeneration, scenario *domain.Scenario) ([]domain.Scene, error) {
	if err := scenario.ValidateForPhase2(); err != nil {
		return nil, sgserrors.NewAPIError(sgserrors.ErrScenarioInvalid, err.Error(), nil)
	}

	aspectRatio := g.AspectRatio
	if aspectRatio == 0 {
		aspectRatio = domain.DefaultAspectRatio
	}
	renderContext := domain.RenderContext{
		AspectRatio: aspectRatio,
		Width:       1920,
		Height:      domain.EvenHeight(1920 / aspectRatio),
		FPS:         30,
	}

	now := time.Now()
	projects := make([]domain.SceneProject, 0, len(scenario.Timeline))
	scenes := make([]domain.Scene, 0, len(scenario.Timeline))

	for i, item := range scenario.Timeline {
		project := buildSceneProject(item, renderContext, g)
		projects = append(projects, project)

		scenes = append(scenes, domain.Scene{
			ID:           uuid.NewString(),
			GenerationID: generationID,
			SceneID:      item.ID,
			Kind:         item.Kind,
			OrderIndex:   i,
			Status:       domain.SceneStatusPending,
			Progress:     0,
			SceneProject: project,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	if err := o.deps.Scenes.CreateBatch(ctx, scenes); err != nil {
		return nil, err
	}
	if err := o.deps.Generations.UpdateSceneProjects(ctx, generationID, projects); err != nil {
		return nil, err
	}

	return scenes, nil
}

// buildSceneProject resolves one TimelineItem into a fully-specified
// SceneProject: verbatim scenario copy, matched video/image inputs,
// and kind-specific extras.
func buildSceneProject(item domain.TimelineItem, renderContext domain.RenderContext, g *domain.SceneGeneration) domain.SceneProject {
	project := domain.SceneProject{
		SceneID:       item.ID,
		Kind:          item.Kind,
		ScenarioItem:  item,
		RenderContext: renderContext,
	}

	switch item.Kind {
	case domain.SceneKindVideo, domain.SceneKindOverlay, domain.SceneKindPIP:
		if item.SourceVideoID != "" {
			project.Inputs.Video = &domain.VideoInput{
				ID:          item.SourceVideoID,
				FromSeconds: *item.FromSeconds,
				ToSeconds:   *item.ToSeconds,
			}
		}
	}

	for _, hint := range item.DetailedRequest.ImageHints {
		for _, img := range g.Images {
			if strings.Contains(img.ID, hint) || strings.Contains(hint, img.ID) {
				project.Inputs.Images = append(project.Inputs.Images, domain.ImageInput{ID: img.ID, URL: img.URL})
			}
		}
	}

	project.Extra = buildExtra(item)
	return project
}

// buildExtra populates kind-specific rendering parameters from
// detailedRequest, applying the documented kind defaults.
func buildExtra(item domain.TimelineItem) domain.SceneProjectExtra {
	dr := item.DetailedRequest
	extra := domain.SceneProjectExtra{
		TextContent:    dr.TextContent,
		AnimationHints: dr.AnimationHints,
		VisualStyle:    dr.VisualStyle,
		AudioStrategy:  dr.AudioStrategy,
		LayoutHint:     dr.LayoutHint,
	}

	switch item.Kind {
	case domain.SceneKindBanner:
		extra.LayoutPreset = "center"
		if extra.AnimationHints == nil {
			extra.AnimationHints = []string{}
		}
	case domain.SceneKindOverlay:
		if extra.LayoutHint == "" {
			extra.LayoutHint = "side_panel_right"
		}
		if extra.AudioStrategy == "" {
			extra.AudioStrategy = "keep"
		}
	case domain.SceneKindPIP:
		extra.Position = "top-right"
		extra.Size = "small"
	}

	return extra
}
