package domain

import "time"

// Scene kinds. "transition" and "blank" are accepted timeline kinds with no
// registered pipeline today; they fail phase 3 with NoPipeline like any
// other unregistered kind. New kinds are additions, not special cases.
const (
	SceneKindVideo      = "video"
	SceneKindBanner     = "banner"
	SceneKindOverlay    = "overlay"
	SceneKindPIP        = "pip"
	SceneKindTransition = "transition"
	SceneKindBlank      = "blank"
)

// Scene status values.
const (
	SceneStatusPending    = "pending"
	SceneStatusProcessing = "processing"
	SceneStatusCompleted  = "completed"
	SceneStatusFailed     = "failed"
)

// Scene is the per-timeline-item rendering record, one row per timeline entry.
type Scene struct {
	ID                string      `json:"id"`
	GenerationID      string      `json:"generationId"`
	SceneID           string      `json:"sceneId"`
	Kind              string      `json:"kind"`
	OrderIndex        int         `json:"orderIndex"`
	Status            string      `json:"status"`
	Progress          int         `json:"progress"`
	RenderedAssetPath string      `json:"renderedAssetPath,omitempty"`
	RenderedAssetURL  string      `json:"renderedAssetUrl,omitempty"`
	Error             string      `json:"error,omitempty"`
	SceneProject      SceneProject `json:"sceneProject"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// IsComposable reports whether this scene qualifies as phase 4 composition
// input: completed, with a non-empty rendered asset path.
func (s Scene) IsComposable() bool {
	return s.Status == SceneStatusCompleted && s.RenderedAssetPath != ""
}
