package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ReplicateImageGenClient implements ImageGenClient via a Replicate-hosted
// text-to-image model. Used only by the banner pipeline when no supplied
// image matches the scene's imageHints.
type ReplicateImageGenClient struct {
	client       *replicateClient
	modelVersion string
	http         *http.Client
}

func NewReplicateImageGenClient(apiToken, modelVersion string, logger *zap.Logger) *ReplicateImageGenClient {
	return &ReplicateImageGenClient{
		client:       newReplicateClient(apiToken, logger),
		modelVersion: modelVersion,
		http:         &http.Client{Timeout: 60 * time.Second},
	}
}

// presetAspects are the preset aspect ratios the model accepts.
var presetAspects = []string{"1:1", "16:9", "9:16", "4:3", "3:4"}

func (c *ReplicateImageGenClient) Generate(ctx context.Context, prompt, aspectRatio string) ([]byte, error) {
	pred, err := c.client.pollUntilDone(ctx, "image-gen", c.modelVersion, map[string]interface{}{
		"prompt":       prompt,
		"aspect_ratio": aspectRatio,
	}, 24, 5*time.Second)
	if err != nil {
		return nil, err
	}

	url, ok := pred.Output.(string)
	if !ok {
		if arr, ok := pred.Output.([]interface{}); ok && len(arr) > 0 {
			url, _ = arr[0].(string)
		}
	}
	if url == "" {
		return nil, fmt.Errorf("image-gen prediction returned no output URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build image download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download generated image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to download generated image: status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// ClosestPresetAspect returns the preset aspect string in presetAspects
// whose ratio is nearest to width/height.
func ClosestPresetAspect(width, height int) string {
	if width <= 0 || height <= 0 {
		return "1:1"
	}
	target := float64(width) / float64(height)

	ratios := map[string]float64{
		"1:1":   1.0,
		"16:9":  16.0 / 9.0,
		"9:16":  9.0 / 16.0,
		"4:3":   4.0 / 3.0,
		"3:4":   3.0 / 4.0,
	}

	best := presetAspects[0]
	bestDiff := -1.0
	for _, preset := range presetAspects {
		diff := target - ratios[preset]
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			bestDiff = diff
			best = preset
		}
	}
	return best
}
