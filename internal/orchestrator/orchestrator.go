// Package orchestrator drives a SceneGeneration through the five phases:
// resource understanding, scenario generation, scene project
// construction, scene rendering and final composition. It owns the state
// machine (queued → processing → {waiting_for_review, waiting_for_scene_review}
// → completed/failed/cancelled), the two human-review checkpoints, and
// cooperative cancellation between phases.
package orchestrator

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/adapters"
	"github.com/scenegenhq/sgs/internal/domain"
	"github.com/scenegenhq/sgs/internal/pipeline"
	"github.com/scenegenhq/sgs/internal/realtime"
	"github.com/scenegenhq/sgs/internal/repository"
	sgserrors "github.com/scenegenhq/sgs/pkg/errors"
)

// Deps bundles every collaborator the orchestrator and its phases need,
// passed explicitly rather than resolved from a global container.
type Deps struct {
	Generations   repository.SceneGenerationRepository
	Scenes        repository.SceneRepository
	Storage       repository.AssetRepository
	Pipelines     *pipeline.Registry
	LLM           adapters.LLMClient
	Vision        adapters.VisionClient
	Transcription adapters.TranscriptionClient
	ImageGen      adapters.ImageGenClient
	Hub           *realtime.Hub
	Logger        *zap.Logger

	// TempRoot is the parent directory under which per-generation scratch
	// directories are created on use and removed on phase/job exit.
	TempRoot string

	// SceneConcurrency bounds phase 3's scene fan-out. Zero means the
	// default of 3.
	SceneConcurrency int

	// Concat joins downloaded scene clips into one file for phase 4. Nil
	// selects the ffmpeg-based pipeline.ConcatFiles; tests substitute an
	// in-process implementation.
	Concat func(ctx context.Context, logger *zap.Logger, tmpDir string, clipPaths []string, outPath string) error
}

func (d Deps) concat() func(ctx context.Context, logger *zap.Logger, tmpDir string, clipPaths []string, outPath string) error {
	if d.Concat == nil {
		return pipeline.ConcatFiles
	}
	return d.Concat
}

func (d Deps) sceneConcurrency() int {
	if d.SceneConcurrency <= 0 {
		return 3
	}
	return d.SceneConcurrency
}

// Orchestrator runs Execute for a fresh `generate` job and Continue for a
// `continue` job resuming from a review checkpoint.
type Orchestrator struct {
	deps Deps
}

func New(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

// Progress is pinned to fixed values at phase boundaries. Phase 0's own
// internal milestone sequence (10/50/80/100) is scaled into [0,20] by
// progressInRange so the generation's progress field never regresses
// across a run; see DESIGN.md.
const (
	progressStart  = 0
	progressPhase0 = 20
	progressPhase1 = 40
	progressPhase2 = 60
	progressPhase3 = 80
	progressPhase4 = 100
)

func progressInRange(frac float64, lo, hi int) int {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return lo + int(frac*float64(hi-lo))
}

// Execute runs a freshly queued generation from phase 0 through completion,
// pausing at either review checkpoint. The GenerationRequest's contents
// (prompt, videos, images, references, aspect ratio, review flags) are
// already persisted on the SceneGeneration row by the REST adapter at
// creation time, so Execute only needs the id — a domain.Job carries
// no request payload of its own.
func (o *Orchestrator) Execute(ctx context.Context, generationID string) error {
	g, err := o.deps.Generations.Get(ctx, generationID)
	if err != nil {
		return err
	}
	if g.Status == domain.StatusCancelled {
		return nil
	}

	if err := o.setPhase(ctx, generationID, domain.Phase0, domain.StatusProcessing, progressStart); err != nil {
		return err
	}

	ec, err := o.runPhase0(ctx, generationID, g)
	if err != nil {
		return o.fail(ctx, generationID, err)
	}
	g.EnrichedContext = ec

	if cancelled, err := o.checkCancelled(ctx, generationID); err != nil {
		return err
	} else if cancelled {
		return nil
	}

	scenario, err := o.runPhase1(ctx, generationID, g)
	if err != nil {
		return o.fail(ctx, generationID, err)
	}

	if cancelled, err := o.checkCancelled(ctx, generationID); err != nil {
		return err
	} else if cancelled {
		return nil
	}

	if g.ReviewScenario {
		return o.setPhase(ctx, generationID, domain.Phase1, domain.StatusWaitingForReview, progressPhase1)
	}
	if err := o.setPhase(ctx, generationID, domain.Phase1, domain.StatusProcessing, progressPhase1); err != nil {
		return err
	}

	return o.continueFromPhase2(ctx, generationID, g, scenario)
}

// Continue resumes a paused generation. It is the only entry point
// for `continue` jobs; branching on status makes "continue is a no-op
// unless status ∈ {waiting_for_review, waiting_for_scene_review}" a
// single, enforced code path.
func (o *Orchestrator) Continue(ctx context.Context, generationID string) error {
	g, err := o.deps.Generations.Get(ctx, generationID)
	if err != nil {
		return err
	}

	switch g.Status {
	case domain.StatusWaitingForReview:
		if err := o.setPhase(ctx, generationID, domain.Phase2, domain.StatusProcessing, progressPhase1); err != nil {
			return err
		}
		return o.continueFromPhase2(ctx, generationID, g, g.Scenario)

	case domain.StatusWaitingForSceneReview:
		if err := o.setPhase(ctx, generationID, domain.Phase4, domain.StatusProcessing, progressPhase3); err != nil {
			return err
		}
		return o.continueFromPhase4(ctx, generationID)

	default:
		return sgserrors.NewAPIError(sgserrors.ErrInvalidState,
			fmt.Sprintf("cannot continue generation in status %q", g.Status), nil)
	}
}

// continueFromPhase2 runs phase 2 (scene project construction) using
// scenario — the stored scenario, possibly edited during review — then
// falls through to phase 3 unless cancelled.
func (o *Orchestrator) continueFromPhase2(ctx context.Context, generationID string, g *domain.SceneGeneration, scenario *domain.Scenario) error {
	if scenario == nil {
		return o.fail(ctx, generationID, sgserrors.NewAPIError(sgserrors.ErrScenarioInvalid, "no scenario available for phase 2", nil))
	}

	scenes, err := o.runPhase2(ctx, generationID, g, scenario)
	if err != nil {
		return o.fail(ctx, generationID, err)
	}
	if err := o.setProgress(ctx, generationID, domain.Phase2, progressPhase2); err != nil {
		return err
	}

	if cancelled, err := o.checkCancelled(ctx, generationID); err != nil {
		return err
	} else if cancelled {
		return nil
	}

	return o.continueFromPhase3(ctx, generationID, g, scenes)
}

// continueFromPhase3 renders every pending/failed scene with bounded
// concurrency, then either pauses for scene review or falls through to
// phase 4.
func (o *Orchestrator) continueFromPhase3(ctx context.Context, generationID string, g *domain.SceneGeneration, scenes []domain.Scene) error {
	if err := o.setPhase(ctx, generationID, domain.Phase3, domain.StatusProcessing, progressPhase2); err != nil {
		return err
	}

	if err := o.runPhase3(ctx, generationID, g, scenes); err != nil {
		return o.fail(ctx, generationID, err)
	}

	if cancelled, err := o.checkCancelled(ctx, generationID); err != nil {
		return err
	} else if cancelled {
		return nil
	}

	if g.ReviewScenes {
		return o.setPhase(ctx, generationID, domain.Phase3, domain.StatusWaitingForSceneReview, progressPhase3)
	}
	if err := o.setPhase(ctx, generationID, domain.Phase3, domain.StatusProcessing, progressPhase3); err != nil {
		return err
	}

	return o.continueFromPhase4(ctx, generationID)
}

// continueFromPhase4 composes the final video from every completed scene.
func (o *Orchestrator) continueFromPhase4(ctx context.Context, generationID string) error {
	resultPath, resultURL, err := o.runPhase4(ctx, generationID)
	if err != nil {
		return o.fail(ctx, generationID, err)
	}

	if err := o.deps.Generations.UpdateResult(ctx, generationID, resultPath, resultURL); err != nil {
		return err
	}
	o.deps.Hub.PublishGenerationComplete(generationID, resultURL)
	return nil
}

// RegenerateScene renders a single scene in isolation, for the
// `regenerate-scene` job kind. Unlike phase 3 it is not bounded by
// the batch-of-3 fan-out since it is always a single scene.
func (o *Orchestrator) RegenerateScene(ctx context.Context, generationID, sceneID string) error {
	g, err := o.deps.Generations.Get(ctx, generationID)
	if err != nil {
		return err
	}
	scene, err := o.deps.Scenes.Get(ctx, generationID, sceneID)
	if err != nil {
		return err
	}

	tempDir, err := os.MkdirTemp(o.deps.TempRoot, "sgs-regen-*")
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

	if err := o.renderOneScene(ctx, generationID, rc, *scene); err != nil {
		return err
	}
	return nil
}

// setPhase writes phase/status/progress and emits the matching phase-change
// event.
func (o *Orchestrator) setPhase(ctx context.Context, generationID, phase, status string, progress int) error {
	if err := o.deps.Generations.UpdatePhaseStatus(ctx, generationID, phase, status, progress); err != nil {
		return err
	}
	o.deps.Hub.PublishPhaseChange(generationID, phase, progress)
	return nil
}

// setProgress writes a progress update within the current (processing)
// phase and emits a progress event.
func (o *Orchestrator) setProgress(ctx context.Context, generationID, phase string, progress int) error {
	if err := o.deps.Generations.UpdatePhaseStatus(ctx, generationID, phase, domain.StatusProcessing, progress); err != nil {
		return err
	}
	o.deps.Hub.PublishProgress(generationID, progress, phase)
	return nil
}

// checkCancelled re-reads the generation's status. Cooperative cancellation
// reads then checks after every phase write: a true result means
// the caller must stop without touching status again.
func (o *Orchestrator) checkCancelled(ctx context.Context, generationID string) (bool, error) {
	g, err := o.deps.Generations.Get(ctx, generationID)
	if err != nil {
		return false, err
	}
	return g.Status == domain.StatusCancelled, nil
}

// fail marks the generation failed, emits an error event, and returns err
// unchanged so the job layer's retry policy applies.
func (o *Orchestrator) fail(ctx context.Context, generationID string, err error) error {
	if markErr := o.deps.Generations.MarkFailed(ctx, generationID, err.Error()); markErr != nil {
		o.deps.Logger.Error("failed to persist failure status", zap.String("generation_id", generationID), zap.Error(markErr))
	}
	o.deps.Hub.PublishError(generationID, err.Error())
	return err
}

func videoURLIndex(videos []domain.MediaInput) map[string]string {
	out := make(map[string]string, len(videos))
	for _, v := range videos {
		out[v.ID] = v.URL
	}
	return out
}
