package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/scenegenhq/sgs/internal/domain"
	sgserrors "github.com/scenegenhq/sgs/pkg/errors"
)

// runPhase1 builds a single LLM prompt from the enriched context and parses
// its response into a Scenario. Unlike phase 0, a failure here is
// fatal — there is no degraded mode for an unusable scenario.
func (o *Orchestrator) runPhase1(ctx context.Context, generationID string, g *domain.SceneGeneration) (*domain.Scenario, error) {
	prompt := buildScenarioPrompt(g)

	raw, err := o.deps.LLM.Complete(ctx, prompt)
	if err != nil {
		return nil, sgserrors.NewUpstreamError("llm", fmt.Sprintf("scenario generation failed: %v", err))
	}

	// Only the lax shape is validated here (non-empty timeline, every item
	// has a kind and a unique id; detailedRequest presence is not checked);
	// the full per-kind invariant set is phase 2's job.
	scenario, err := parseScenario(raw)
	if err != nil {
		return nil, sgserrors.NewAPIError(sgserrors.ErrScenarioInvalid, err.Error(), nil)
	}

	if err := o.deps.Generations.UpdateScenario(ctx, generationID, scenario); err != nil {
		return nil, err
	}
	return scenario, nil
}

// buildScenarioPrompt enumerates the user prompt, per-video transcripts and
// metadata, per-image captions, reference notes, and the expected JSON
// schema.
func buildScenarioPrompt(g *domain.SceneGeneration) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "User request:\n%s\n\n", g.Prompt)

	if g.EnrichedContext != nil {
		if len(g.EnrichedContext.VideoMetadata) > 0 {
			sb.WriteString("Source videos:\n")
			for id, meta := range g.EnrichedContext.VideoMetadata {
				fmt.Fprintf(&sb, "- %s: duration=%.2fs fps=%.2f size=%dx%d\n", id, meta.Duration, meta.FPS, meta.Width, meta.Height)
				if transcript, ok := g.EnrichedContext.VideoTranscripts[id]; ok {
					fmt.Fprintf(&sb, "  transcript: %s\n", transcript)
				}
			}
			sb.WriteString("\n")
		}
		if len(g.EnrichedContext.ImageCaptions) > 0 {
			sb.WriteString("Source images:\n")
			for id, caption := range g.EnrichedContext.ImageCaptions {
				fmt.Fprintf(&sb, "- %s: %s\n", id, caption)
			}
			sb.WriteString("\n")
		}
		if g.EnrichedContext.ReferenceNotes != "" {
			fmt.Fprintf(&sb, "Reference notes:\n%s\n\n", g.EnrichedContext.ReferenceNotes)
		}
	}

	sb.WriteString(scenarioJSONSchema)
	return sb.String()
}

const scenarioJSONSchema = `Respond with a single JSON object matching this schema and nothing else:
{
  "timeline": [
    {
      "id": "string, unique within the timeline",
      "kind": "video|banner|overlay|pip|transition|blank",
      "durationSeconds": "number, required for kind=banner",
      "sourceVideoId": "string, required for kind in {video,overlay,pip}",
      "fromSeconds": "number >= 0, required for kind in {video,overlay,pip}",
      "toSeconds": "number > fromSeconds, required for kind in {video,overlay,pip}",
      "detailedRequest": {
        "goal": "string",
        "description": "string",
        "visualStyle": ["string"],
        "layoutHint": "string",
        "textContent": "string",
        "imageHints": ["string"],
        "audioStrategy": "string",
        "animationHints": ["string"]
      }
    }
  ]
}`

var fencedCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// parseScenario strips any fenced code block the LLM wraps its JSON in,
// then parses and validates the shape: non-empty timeline, every
// item has a kind and a unique id (detailedRequest presence is not checked).
func parseScenario(raw string) (*domain.Scenario, error) {
	body := raw
	if m := fencedCodeBlock.FindStringSubmatch(raw); m != nil {
		body = m[1]
	}
	body = strings.TrimSpace(body)

	var scenario domain.Scenario
	if err := json.Unmarshal([]byte(body), &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario JSON: %w", err)
	}
	if err := scenario.ValidateForAPI(); err != nil {
		return nil, fmt.Errorf("scenario failed validation: %w", err)
	}
	return &scenario, nil
}
