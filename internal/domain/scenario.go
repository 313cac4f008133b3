package domain

import (
	"fmt"
)

// Scenario is the LLM-produced timeline describing what each scene should
// contain. It round-trips through PUT/GET /{id}/scenario untouched.
type Scenario struct {
	Timeline []TimelineItem `json:"timeline"`
}

// TimelineItem is one entry of a Scenario.
type TimelineItem struct {
	ID              string          `json:"id"`
	Kind            string          `json:"kind"`
	DurationSeconds float64         `json:"durationSeconds,omitempty"`
	SourceVideoID   string          `json:"sourceVideoId,omitempty"`
	FromSeconds     *float64        `json:"fromSeconds,omitempty"`
	ToSeconds       *float64        `json:"toSeconds,omitempty"`
	DetailedRequest DetailedRequest `json:"detailedRequest"`
}

// DetailedRequest carries the free-form per-scene creative brief. Its fields
// are individually optional; pipelines pick the ones relevant to their kind.
type DetailedRequest struct {
	Goal            string   `json:"goal,omitempty"`
	Description     string   `json:"description,omitempty"`
	VisualStyle     []string `json:"visualStyle,omitempty"`
	LayoutHint      string   `json:"layoutHint,omitempty"`
	TextContent     string   `json:"textContent,omitempty"`
	ImageHints      []string `json:"imageHints,omitempty"`
	AudioStrategy   string   `json:"audioStrategy,omitempty"`
	AnimationHints  []string `json:"animationHints,omitempty"`
}

// ValidateForAPI enforces the laxer schema accepted by PUT /{id}/scenario:
// non-empty timeline, and every item has a non-empty kind and a non-empty,
// unique id. The presence of detailedRequest is not checked: an item without
// one decodes to an empty DetailedRequest and is accepted. Duration/source-video constraints are NOT enforced here —
// those belong to phase 2 (ValidateForPhase2) — deliberately, per spec.
func (s Scenario) ValidateForAPI() error {
	if len(s.Timeline) == 0 {
		return fmt.Errorf("timeline must not be empty")
	}
	seen := make(map[string]bool, len(s.Timeline))
	for i, item := range s.Timeline {
		if item.ID == "" {
			return fmt.Errorf("timeline[%d]: id is required", i)
		}
		if item.Kind == "" {
			return fmt.Errorf("timeline[%d]: kind is required", i)
		}
		if seen[item.ID] {
			return fmt.Errorf("timeline[%d]: duplicate id %q", i, item.ID)
		}
		seen[item.ID] = true
	}
	return nil
}

// ValidateForPhase2 enforces the full invariant set: in addition to
// ValidateForAPI's checks, {video,overlay,pip} items require sourceVideoId,
// fromSeconds and toSeconds with toSeconds > fromSeconds >= 0, and banner
// items require durationSeconds > 0.
func (s Scenario) ValidateForPhase2() error {
	if err := s.ValidateForAPI(); err != nil {
		return err
	}
	for i, item := range s.Timeline {
		switch item.Kind {
		case SceneKindVideo, SceneKindOverlay, SceneKindPIP:
			if item.SourceVideoID == "" {
				return fmt.Errorf("timeline[%d]: sourceVideoId is required for kind %q", i, item.Kind)
			}
			if item.FromSeconds == nil || item.ToSeconds == nil {
				return fmt.Errorf("timeline[%d]: fromSeconds and toSeconds are required for kind %q", i, item.Kind)
			}
			if *item.FromSeconds < 0 || *item.ToSeconds <= *item.FromSeconds {
				return fmt.Errorf("timeline[%d]: toSeconds must be greater than fromSeconds, and fromSeconds must be >= 0", i)
			}
		case SceneKindBanner:
			if item.DurationSeconds <= 0 {
				return fmt.Errorf("timeline[%d]: durationSeconds must be > 0 for kind banner", i)
			}
		}
	}
	return nil
}
