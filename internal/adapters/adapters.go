// Package adapters wraps the external AI collaborators: an
// LLM for scenario generation, a vision model for image captioning, a
// speech-to-text model for video transcripts, and an image-generation model
// for banner foregrounds. Credentials are discovered from the environment
// and are not part of the core's contract.
package adapters

import "context"

// LLMClient produces a single completion for a prompt. Phase 1 uses it to
// turn the enriched context into a scenario; it has no degraded mode —
// a failure here is fatal to the phase.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// VisionClient describes the contents of an image. Phase 0 uses it for
// image captioning; failures are swallowed per-resource.
type VisionClient interface {
	Describe(ctx context.Context, imageURL string) (string, error)
}

// TranscriptionClient transcribes an audio track to text. Phase 0 uses it
// for video transcripts; failures are swallowed per-resource.
type TranscriptionClient interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// ImageGenClient generates a single image from a prompt at the given
// preset aspect ratio (one of "1:1", "16:9", "9:16", "4:3", "3:4"). The
// banner pipeline uses it for a generated foreground when no supplied
// image matches.
type ImageGenClient interface {
	Generate(ctx context.Context, prompt, aspectRatio string) ([]byte, error)
}
