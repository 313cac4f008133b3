// Package domain holds the SGS data model: SceneGeneration, Scene, Scenario,
// SceneProject, EnrichedContext and the transient queue Job.
package domain

import "time"

// Status values for a SceneGeneration. Terminal states are Completed, Failed
// and Cancelled.
const (
	StatusQueued                = "queued"
	StatusProcessing            = "processing"
	StatusWaitingForReview      = "waiting_for_review"
	StatusWaitingForSceneReview = "waiting_for_scene_review"
	StatusCompleted             = "completed"
	StatusFailed                = "failed"
	StatusCancelled             = "cancelled"
)

// Phase values for a SceneGeneration.
const (
	Phase0 = "phase0"
	Phase1 = "phase1"
	Phase2 = "phase2"
	Phase3 = "phase3"
	Phase4 = "phase4"
)

// SceneGeneration is the unit of work driven by the orchestrator.
type SceneGeneration struct {
	ID              string           `json:"id"`
	Prompt          string           `json:"prompt"`
	AspectRatio     float64          `json:"aspectRatio"`
	ReviewScenario  bool             `json:"reviewScenario"`
	ReviewScenes    bool             `json:"reviewScenes"`
	Status          string           `json:"status"`
	Phase           string           `json:"phase"`
	Progress        int              `json:"progress"`
	EnrichedContext *EnrichedContext `json:"enrichedContext,omitempty"`
	Scenario        *Scenario        `json:"scenario,omitempty"`
	SceneProjects   []SceneProject   `json:"sceneProjects,omitempty"`
	ResultURL       string           `json:"resultUrl,omitempty"`
	ResultPath      string           `json:"resultPath,omitempty"`
	Error           string           `json:"error,omitempty"`
	TaskID          string           `json:"taskId,omitempty"`
	PublicationID   string           `json:"publicationId,omitempty"`
	Videos          []MediaInput     `json:"videos,omitempty"`
	Images          []MediaInput     `json:"images,omitempty"`
	References      []string         `json:"references,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	CompletedAt     *time.Time       `json:"completedAt,omitempty"`

	// Scenes is populated by the repository on read; it is not a column.
	Scenes []Scene `json:"scenes,omitempty"`
}

// MediaInput is a user-supplied video, image or reference asset named in a
// GenerationRequest.
type MediaInput struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// GenerationRequest is the payload of POST /generate.
type GenerationRequest struct {
	Prompt         string       `json:"prompt" binding:"required"`
	AspectRatio    float64      `json:"aspectRatio"`
	ReviewScenario bool         `json:"reviewScenario"`
	ReviewScenes   bool         `json:"reviewScenes"`
	Videos         []MediaInput `json:"videos"`
	Images         []MediaInput `json:"images"`
	References     []string     `json:"references"`
	TaskID         string       `json:"taskId,omitempty"`
	PublicationID  string       `json:"publicationId,omitempty"`
}

// DefaultAspectRatio is applied when a request omits aspectRatio or passes
// zero.
const DefaultAspectRatio = 5.83

// IsTerminal reports whether status is one of the three terminal states.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}
