package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scenegenhq/sgs/internal/domain"
	"github.com/scenegenhq/sgs/internal/queue"
	"github.com/scenegenhq/sgs/internal/repository"
	sgserrors "github.com/scenegenhq/sgs/pkg/errors"
)

// GenerationsHandler implements the REST contract for scene generations
// and their nested scenes. It only validates input and enqueues work; the
// orchestrator (run by the worker) owns all state transitions.
type GenerationsHandler struct {
	generations repository.SceneGenerationRepository
	scenes      repository.SceneRepository
	storage     repository.AssetRepository
	queue       queue.Queue
	logger      *zap.Logger
	environment string
}

func NewGenerationsHandler(
	generations repository.SceneGenerationRepository,
	scenes repository.SceneRepository,
	storage repository.AssetRepository,
	q queue.Queue,
	logger *zap.Logger,
	environment string,
) *GenerationsHandler {
	return &GenerationsHandler{
		generations: generations,
		scenes:      scenes,
		storage:     storage,
		queue:       q,
		logger:      logger,
		environment: environment,
	}
}

func (h *GenerationsHandler) respondNotFoundOr(c *gin.Context, err error, notFound *sgserrors.APIError) bool {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, sgserrors.ErrorResponse{Error: notFound})
		return true
	}
	if err != nil {
		RespondError(c, h.environment, err)
		return true
	}
	return false
}

// Create handles POST /generate.
func (h *GenerationsHandler) Create(c *gin.Context) {
	var req domain.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, sgserrors.ErrorResponse{Error: sgserrors.NewAPIError(sgserrors.ErrInvalidRequest, err.Error(), nil)})
		return
	}
	if req.Prompt == "" {
		c.JSON(http.StatusBadRequest, sgserrors.ErrorResponse{Error: sgserrors.ErrInvalidPrompt})
		return
	}

	if req.AspectRatio == 0 {
		req.AspectRatio = domain.DefaultAspectRatio
	}

	now := time.Now()
	g := &domain.SceneGeneration{
		ID:             uuid.NewString(),
		Prompt:         req.Prompt,
		AspectRatio:    req.AspectRatio,
		ReviewScenario: req.ReviewScenario,
		ReviewScenes:   req.ReviewScenes,
		Status:         domain.StatusQueued,
		Phase:          domain.Phase0,
		Progress:       0,
		TaskID:         req.TaskID,
		PublicationID:  req.PublicationID,
		Videos:         req.Videos,
		Images:         req.Images,
		References:     req.References,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.generations.Create(c.Request.Context(), g); err != nil {
		RespondError(c, h.environment, err)
		return
	}

	job := domain.Job{ID: uuid.NewString(), Kind: domain.JobKindGenerate, GenerationID: g.ID}
	if err := h.queue.Submit(c.Request.Context(), job); err != nil {
		RespondError(c, h.environment, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       g.ID,
		"status":   g.Status,
		"phase":    g.Phase,
		"progress": g.Progress,
	})
}

// List handles GET / — up to 100 most recent, filterable by status and phase.
func (h *GenerationsHandler) List(c *gin.Context) {
	status := c.Query("status")
	phase := c.Query("phase")

	generations, err := h.generations.List(c.Request.Context(), 100, status)
	if err != nil {
		RespondError(c, h.environment, err)
		return
	}

	if phase != "" {
		filtered := generations[:0]
		for _, g := range generations {
			if g.Phase == phase {
				filtered = append(filtered, g)
			}
		}
		generations = filtered
	}

	c.JSON(http.StatusOK, generations)
}

// Get handles GET /{id} — fetch a generation with its scenes sorted by
// orderIndex (ordering is already enforced by the repository's query).
func (h *GenerationsHandler) Get(c *gin.Context) {
	g, err := h.generations.Get(c.Request.Context(), c.Param("id"))
	if h.respondNotFoundOr(c, err, sgserrors.ErrGenerationNotFound) {
		return
	}
	c.JSON(http.StatusOK, g)
}

// GetScenario handles GET /{id}/scenario.
func (h *GenerationsHandler) GetScenario(c *gin.Context) {
	g, err := h.generations.Get(c.Request.Context(), c.Param("id"))
	if h.respondNotFoundOr(c, err, sgserrors.ErrGenerationNotFound) {
		return
	}
	if g.Scenario == nil {
		c.JSON(http.StatusNotFound, sgserrors.ErrorResponse{Error: sgserrors.NewAPIError(sgserrors.ErrNotFound, "scenario has not been produced yet", nil)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       g.ID,
		"scenario": g.Scenario,
		"status":   g.Status,
		"phase":    g.Phase,
	})
}

// PutScenarioRequest is the body of PUT /{id}/scenario.
type PutScenarioRequest struct {
	Scenario domain.Scenario `json:"scenario"`
}

// PutScenario handles PUT /{id}/scenario. It enforces the laxer schema
// accepted at this boundary; the full per-kind invariant set is only
// enforced once phase 2 runs.
func (h *GenerationsHandler) PutScenario(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.generations.Get(c.Request.Context(), id); h.respondNotFoundOr(c, err, sgserrors.ErrGenerationNotFound) {
		return
	}

	var body PutScenarioRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, sgserrors.ErrorResponse{Error: sgserrors.NewAPIError(sgserrors.ErrInvalidRequest, err.Error(), nil)})
		return
	}
	if err := body.Scenario.ValidateForAPI(); err != nil {
		c.JSON(http.StatusBadRequest, sgserrors.ErrorResponse{Error: sgserrors.NewAPIError(sgserrors.ErrInvalidScenario, err.Error(), nil)})
		return
	}

	if err := h.generations.UpdateScenario(c.Request.Context(), id, &body.Scenario); err != nil {
		RespondError(c, h.environment, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "scenario": body.Scenario})
}

// Cancel handles DELETE /{id}. Cancellation is idempotent: any number
// of calls leave status=cancelled.
func (h *GenerationsHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.generations.Get(c.Request.Context(), id); h.respondNotFoundOr(c, err, sgserrors.ErrGenerationNotFound) {
		return
	}
	if err := h.generations.MarkCancelled(c.Request.Context(), id); err != nil {
		RespondError(c, h.environment, err)
		return
	}
	if err := h.queue.Remove(c.Request.Context(), id); err != nil {
		// best effort: the orchestrator's status checks stop any job that
		// slips through
		h.logger.Warn("failed to remove queued jobs for cancelled generation",
			zap.String("generation_id", id), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": domain.StatusCancelled})
}

// Continue handles POST /{id}/continue — enqueues a `continue` job. Unless
// status is one of the two review checkpoints, the handler rejects the call
// with a 400 InvalidState and enqueues nothing.
func (h *GenerationsHandler) Continue(c *gin.Context) {
	id := c.Param("id")
	g, err := h.generations.Get(c.Request.Context(), id)
	if h.respondNotFoundOr(c, err, sgserrors.ErrGenerationNotFound) {
		return
	}
	if g.Status != domain.StatusWaitingForReview && g.Status != domain.StatusWaitingForSceneReview {
		c.JSON(http.StatusBadRequest, sgserrors.ErrorResponse{Error: sgserrors.NewAPIError(sgserrors.ErrInvalidState,
			"generation is not waiting for review", nil)})
		return
	}

	job := domain.Job{ID: uuid.NewString(), Kind: domain.JobKindContinue, GenerationID: id}
	if err := h.queue.Submit(c.Request.Context(), job); err != nil {
		RespondError(c, h.environment, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": domain.StatusProcessing})
}

// RegenerateScene handles POST /{id}/scenes/{sceneId}/regenerate.
func (h *GenerationsHandler) RegenerateScene(c *gin.Context) {
	generationID, sceneID := c.Param("id"), c.Param("sceneId")

	scene, err := h.scenes.Get(c.Request.Context(), generationID, sceneID)
	if h.respondNotFoundOr(c, err, sgserrors.ErrSceneNotFound) {
		return
	}

	if err := h.scenes.UpdateProgress(c.Request.Context(), generationID, sceneID, domain.SceneStatusPending, 0); err != nil {
		RespondError(c, h.environment, err)
		return
	}

	job := domain.Job{ID: uuid.NewString(), Kind: domain.JobKindRegenerateScene, GenerationID: generationID, SceneID: scene.SceneID}
	if err := h.queue.Submit(c.Request.Context(), job); err != nil {
		RespondError(c, h.environment, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": generationID, "sceneId": sceneID, "status": domain.SceneStatusPending})
}

// DebugFrames handles GET /{id}/scenes/{sceneId}/debug-frames. It returns
// the base storage path plus the frame URLs the banner pipeline recorded
// on the scene row; storage is never enumerated at request time.
func (h *GenerationsHandler) DebugFrames(c *gin.Context) {
	generationID, sceneID := c.Param("id"), c.Param("sceneId")

	scene, err := h.scenes.Get(c.Request.Context(), generationID, sceneID)
	if h.respondNotFoundOr(c, err, sgserrors.ErrSceneNotFound) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sceneId":         sceneID,
		"generationId":    generationID,
		"debugFramesPath": "scene-generation/debug-frames/" + sceneID + "/",
		"debugFrameUrls":  scene.SceneProject.DebugFrameURLs,
	})
}
